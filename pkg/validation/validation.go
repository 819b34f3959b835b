package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"callbridge/internal/core/domain"
)

var (
	// GUIDRegex validates platform object identifiers
	GUIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ActionNameRegex validates qualified workflow action names such as Module.ACT_Name
	ActionNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

	// AttributeNameRegex validates entity attribute names
	AttributeNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateGUID validates a platform object identifier
func ValidateGUID(guid string) error {
	if guid == "" {
		return fmt.Errorf("guid is required")
	}
	if len(guid) > 100 {
		return fmt.Errorf("guid is too long (max 100 characters)")
	}
	if !GUIDRegex.MatchString(guid) {
		return fmt.Errorf("invalid guid format")
	}
	return nil
}

// ValidateActionName validates a workflow action name
func ValidateActionName(name string) error {
	if name == "" {
		return fmt.Errorf("action name is required")
	}
	if !ActionNameRegex.MatchString(name) {
		return fmt.Errorf("invalid action name %q", name)
	}
	return nil
}

// ValidateAttributeName validates an entity attribute name
func ValidateAttributeName(name string) error {
	if name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if !AttributeNameRegex.MatchString(name) {
		return fmt.Errorf("invalid attribute name %q", name)
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string, schemes ...string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if len(schemes) == 0 {
		schemes = []string{"http", "https", "ws", "wss"}
	}
	allowed := false
	for _, s := range schemes {
		if u.Scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid URL scheme %q (must be one of %s)", u.Scheme, strings.Join(schemes, ", "))
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateTheme accepts the empty theme and the known filter themes.
func ValidateTheme(theme string) error {
	switch theme {
	case "", domain.ThemeBlur, domain.ThemeImage:
		return nil
	default:
		return fmt.Errorf("unknown theme %q (must be %q, %q or empty)", theme, domain.ThemeBlur, domain.ThemeImage)
	}
}

// ValidateCallProps reports every problem with the mount properties at once.
// Session credentials are required; action names, attribute and GUID only when set.
func ValidateCallProps(props domain.CallProps) error {
	var errs []error

	if strings.TrimSpace(props.APIKey) == "" {
		errs = append(errs, fmt.Errorf("api key is required"))
	}
	if strings.TrimSpace(props.SessionID) == "" {
		errs = append(errs, fmt.Errorf("session id is required"))
	}
	if strings.TrimSpace(props.Token) == "" {
		errs = append(errs, fmt.Errorf("token is required"))
	}
	if props.EntityGUID != "" {
		if err := ValidateGUID(props.EntityGUID); err != nil {
			errs = append(errs, fmt.Errorf("entity: %w", err))
		}
	}
	if err := ValidateTheme(props.Theme); err != nil {
		errs = append(errs, err)
	}
	for field, name := range map[string]string{
		"interrupt action": props.InterruptAction,
		"offline action":   props.OfflineAction,
		"end call action":  props.EndCallAction,
	} {
		if name == "" {
			continue
		}
		if err := ValidateActionName(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	if props.OfflineAttribute != "" {
		if err := ValidateAttributeName(props.OfflineAttribute); err != nil {
			errs = append(errs, fmt.Errorf("offline attribute: %w", err))
		}
	}

	return errors.Join(errs...)
}
