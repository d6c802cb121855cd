package callbacks

import (
	"strconv"
	"strings"
)

// Parts splits payload on "|". An empty payload has no parts.
func Parts(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, "|")
}

// UserAndRest parses payloads shaped "<user_id>|<rest>".
func UserAndRest(payload string) (int64, string, error) {
	head, rest, _ := strings.Cut(payload, "|")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return id, rest, nil
}
