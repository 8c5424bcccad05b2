package registry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sasToken builds a registry shared access signature for resource, valid
// until expiry.
func sasToken(resource, keyName string, key []byte, expiry time.Time) string {
	sr := url.QueryEscape(strings.ToLower(resource))
	se := strconv.FormatInt(expiry.Unix(), 10)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(sr + "\n" + se))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return "SharedAccessSignature sr=" + sr +
		"&sig=" + url.QueryEscape(sig) +
		"&se=" + se +
		"&skn=" + url.QueryEscape(keyName)
}
