// Package validators holds input rules shared by handlers and models, and
// registers them with gin's validator engine.
package validators

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
)

// ColorLength is the length of a tag color: '#' followed by six hex digits.
const ColorLength = 7

var (
	usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)
	slugRegex     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// reservedUsernames collide with fixed routes under /users/.
var reservedUsernames = []string{"me", "subscriptions", "set_password"}

// ValidateHexColor checks a tag color such as "#E26C2D". Length is checked
// first, then the leading '#', then the hex digits.
func ValidateHexColor(value string) error {
	if utf8.RuneCountInString(value) != ColorLength {
		return &apierr.Error{
			Kind:    apierr.KindValidation,
			Code:    "hex_only_length",
			Field:   "color",
			Message: fmt.Sprintf("Invalid length. Must be %d characters.", ColorLength),
		}
	}
	if value[0] != '#' {
		return &apierr.Error{
			Kind:    apierr.KindValidation,
			Code:    "hex_only_prefix",
			Field:   "color",
			Message: "Color must start with '#'.",
		}
	}
	if _, err := hex.DecodeString(value[1:]); err != nil {
		return &apierr.Error{
			Kind:    apierr.KindValidation,
			Code:    "hex_only",
			Field:   "color",
			Message: "Only a hex string is allowed.",
		}
	}
	return nil
}

// UniqueIngredients fails with apierr.ErrDuplicateIngredient if any
// ingredient id repeats.
func UniqueIngredients(ids []uint) error {
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apierr.ErrDuplicateIngredient
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ValidUsername reports whether name uses the allowed character set and is
// not reserved.
func ValidUsername(name string) bool {
	if !usernameRegex.MatchString(name) {
		return false
	}
	for _, r := range reservedUsernames {
		if strings.EqualFold(name, r) {
			return false
		}
	}
	return true
}

// ValidSlug reports whether s consists of letters, digits, hyphens and
// underscores.
func ValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

var registerOnce sync.Once

// Register installs the custom "username" and "slug" rules and makes
// validation errors report json field names. Tag colors are checked with
// ValidateHexColor so each failure keeps its own message. Safe to call
// repeatedly.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonName)
		// Tag names are static, so registration cannot fail.
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidUsername(fl.Field().String())
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return ValidSlug(fl.Field().String())
		})
	})
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
