package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizPayloadKey returns the cache key for a quiz's attempt payload (no answer key).
func (r *CacheKeyStruct) QuizPayloadKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

// QuizAnswerKey returns the cache key for a quiz's answer key hash.
func (r *CacheKeyStruct) QuizAnswerKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:key", quizID)
}

// QuizRoomChannel returns the Redis PubSub channel name for a quiz room.
func (r *CacheKeyStruct) QuizRoomChannel(quizID string) string {
	return fmt.Sprintf("quiz:%s:room", quizID)
}

// LeaderboardKey returns the cache key for a leaderboard snapshot.
// Category names may contain spaces, so they are normalized.
func (r *CacheKeyStruct) LeaderboardKey(category, timeframe string) string {
	if category == "" {
		category = "_all"
	}
	return fmt.Sprintf("leaderboard:%s:%s", strings.ReplaceAll(strings.ToLower(category), " ", "_"), timeframe)
}

// LeaderboardPattern matches every cached leaderboard snapshot.
func (r *CacheKeyStruct) LeaderboardPattern() string {
	return "leaderboard:*"
}

var CacheKey = NewCacheKeyStruct()
