package store

import (
	"fmt"
	"regexp"
	"strings"

	"medistock/m/domain"
)

// Pharmacy names become part of table and file names, so they are gated
// here before any SQL or path is built from them. Lowercase letters,
// digits and underscores only; 64 chars max.
var tenantPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// NormalizeTenant lowercases and trims a pharmacy name and validates it
// as a safe identifier.
func NormalizeTenant(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !tenantPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrBadTenant, name)
	}
	return name, nil
}

func activeTable(tenant, kind string) (string, error) {
	switch kind {
	case domain.KindMedicines:
		return "medicines_" + tenant, nil
	case domain.KindGeneralItems:
		return "general_items_" + tenant, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadKind, kind)
}

func archiveTable(tenant, kind string) (string, error) {
	switch kind {
	case domain.KindMedicines:
		return "expired_items_" + tenant, nil
	case domain.KindGeneralItems:
		return "expired_general_items_" + tenant, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadKind, kind)
}
