package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// GitBlobSHA returns the object id git assigns to a blob with the given
// content. The GitHub contents API reports this value as a file's sha.
func GitBlobSHA(content []byte) string {
	hasher := sha1.New()
	hasher.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	hasher.Write(content)
	return hex.EncodeToString(hasher.Sum(nil))
}
