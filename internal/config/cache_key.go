package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamSectionsKey returns the cache key for an exam's paper (sections and questions)
func (r *CacheKeyStruct) ExamSectionsKey(examID string) string {
	return fmt.Sprintf("exam:%s:sections", examID)
}

// CandidateSessionKey returns the cache key holding a candidate's session id for an exam
func (r *CacheKeyStruct) CandidateSessionKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:session", candidateID, examID)
}

// SessionAnswersKey returns the cache key for a session's answers
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionCompletedKey marks a session as finalized until the worker persists it
func (r *CacheKeyStruct) SessionCompletedKey(sessionID string) string {
	return fmt.Sprintf("session:%s:completed", sessionID)
}

// SessionTabSwitchesKey holds the latest tab switch count of a session
func (r *CacheKeyStruct) SessionTabSwitchesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:tab_switches", sessionID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
