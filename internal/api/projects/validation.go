package projects

import (
	"errors"
	"fmt"
	"strings"
)

const (
	minNameLen        = 3
	maxNameLen        = 50
	maxDescriptionLen = 500
	maxTagLen         = 20
)

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) < minNameLen {
		return fmt.Errorf("name must be at least %d characters", minNameLen)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("name must be %d characters or less", maxNameLen)
	}
	return nil
}

func ValidateDescription(description string) error {
	if len(description) > maxDescriptionLen {
		return fmt.Errorf("description must be %d characters or less", maxDescriptionLen)
	}
	return nil
}

func ValidateTags(tags []string) error {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return errors.New("tags must not be empty")
		}
		if len(tag) > maxTagLen {
			return fmt.Errorf("tag %q must be %d characters or less", tag, maxTagLen)
		}
	}
	return nil
}
