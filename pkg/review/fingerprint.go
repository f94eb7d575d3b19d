package review

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// unitFingerprint identifies a (project, MR, file, rule, content)
// review unit. The content hash covers the bare code without line
// annotations, so re-pushes that shift lines but leave content intact
// still hit the cache.
func unitFingerprint(projectID string, mrIID int64, file, ruleID, ruleVersion, codeWithoutLines string) string {
	content := sha256.Sum256([]byte(codeWithoutLines))
	payload := fmt.Sprintf("prj:%s|mr:%d|file:%s|rule:%s|ruleVer:%s|content:%s",
		projectID, mrIID, file, ruleID, ruleVersion, hex.EncodeToString(content[:]))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// contextHash identifies the surroundings of a violation so the same
// finding is not posted twice across runs. Truncated to 16 hex chars.
func contextHash(ruleID, file string, line int, context string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d|%s", ruleID, file, line, context)))
	return hex.EncodeToString(sum[:])[:16]
}

// violationIdentifier is the marker embedded in posted comments and
// scanned back out of existing discussions for dedupe.
func violationIdentifier(ruleID, file, hash string) string {
	return fmt.Sprintf("bot-review-id: rule=%s, file=%s, contextHash=%s", ruleID, file, hash)
}
