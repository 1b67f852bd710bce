package middleware

import "strings"

const bearerPrefix = "Bearer "

func bearerToken(value string) (string, bool) {
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", false
	}

	token := value[len(bearerPrefix):]
	if token == "" {
		return "", false
	}

	return token, true
}
