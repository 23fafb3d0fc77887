package model

import "strings"

// ServiceLearningType tells whether service learning was required.
type ServiceLearningType string

const (
	ServiceLearningCompulsory ServiceLearningType = "compulsory"
	ServiceLearningOptional   ServiceLearningType = "optional"
)

func (t ServiceLearningType) Valid() bool {
	return t == ServiceLearningCompulsory || t == ServiceLearningOptional
}

// The type is stored as a tag in front of the free-text description.
const (
	tagCompulsory = "[COMPULSORY]"
	tagOptional   = "[OPTIONAL]"
)

// EncodeServiceLearning prefixes desc with the tag of t.
func EncodeServiceLearning(t ServiceLearningType, desc string) string {
	tag := tagCompulsory
	if t == ServiceLearningOptional {
		tag = tagOptional
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return tag
	}
	return tag + " " + desc
}

// DecodeServiceLearning splits a stored description into type and text.
// Untagged text predates the tag and is read as compulsory.
func DecodeServiceLearning(s string) (ServiceLearningType, string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, tagCompulsory):
		return ServiceLearningCompulsory, strings.TrimSpace(s[len(tagCompulsory):])
	case strings.HasPrefix(s, tagOptional):
		return ServiceLearningOptional, strings.TrimSpace(s[len(tagOptional):])
	default:
		return ServiceLearningCompulsory, s
	}
}
