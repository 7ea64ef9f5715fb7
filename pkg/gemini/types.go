package gemini

import "google.golang.org/genai"

// Schema is the response schema sent with GenerateJSON.
type Schema = genai.Schema

const (
	TypeObject  = genai.TypeObject
	TypeArray   = genai.TypeArray
	TypeString  = genai.TypeString
	TypeInteger = genai.TypeInteger
)
