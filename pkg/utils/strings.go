package utils

// MaskSecret keeps the first two characters of a secret for log lines
func MaskSecret(secret string) string {
	if len(secret) <= 2 {
		return "***"
	}
	return secret[:2] + "***"
}

// ShortID trims an id for compact log output
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
