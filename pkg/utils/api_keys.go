package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const apiKeyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func GenerateRandomKey(length int) (string, error) {
	return gonanoid.Generate(apiKeyAlphabet, length)
}
