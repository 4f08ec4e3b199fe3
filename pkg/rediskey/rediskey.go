package rediskey

import "fmt"

const (
	AdUnlockLockPrefix   = "lock:ad_unlock"
	CoinUnlockLockPrefix = "lock:coin_unlock"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildAdUnlockLockKey returns "lock:ad_unlock:{userID}:{novelID}"
func BuildAdUnlockLockKey(userID, novelID string) string {
	return NamespaceKey(AdUnlockLockPrefix, userID+":"+novelID)
}

// BuildCoinUnlockLockKey returns "lock:coin_unlock:{userID}:{chapterID}"
func BuildCoinUnlockLockKey(userID, chapterID string) string {
	return NamespaceKey(CoinUnlockLockPrefix, userID+":"+chapterID)
}
