// Package auth implements the Telegram Login Widget signature scheme.
//
// Telegram signs the login payload with HMAC-SHA256 over the sorted
// "key=value" field lines, keyed with SHA256 of the bot token. See
// https://core.telegram.org/widgets/login#checking-authorization.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// WidgetHash computes the signature Telegram would produce for the given
// payload fields. The "hash" field itself is excluded from the computation.
func WidgetHash(fields map[string]string, botToken string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + fields[k]
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWidgetHash reports whether the payload's "hash" field matches the
// recomputed signature. The comparison is constant time.
func VerifyWidgetHash(fields map[string]string, botToken string) bool {
	received := fields["hash"]
	if botToken == "" || received == "" {
		return false
	}
	computed := WidgetHash(fields, botToken)
	return hmac.Equal([]byte(computed), []byte(received))
}

// PayloadFields flattens a decoded JSON login payload into the string map
// Telegram signs. Null values are dropped; numbers keep their literal form,
// so the payload must be decoded with json.Decoder.UseNumber.
func PayloadFields(raw map[string]any) map[string]string {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			fields[k] = val
		case bool:
			if val {
				fields[k] = "true"
			} else {
				fields[k] = "false"
			}
		default:
			// json.Number and anything else with a literal representation.
			if s, ok := v.(interface{ String() string }); ok {
				fields[k] = s.String()
			}
		}
	}
	return fields
}
