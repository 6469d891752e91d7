package utils

import "strings"

// ParseHeaderArgs turns CLI-style "Key: value" strings into a header map,
// used by the duskfetch CLI to build a Request's Headers field.
func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}
