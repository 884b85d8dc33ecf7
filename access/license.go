package access

// ResolveLicense decides an add-on right (copy or download) under the
// school's policy mode. In ADDON mode both base course access and the
// matching license are required: neither substitutes for the other.
func ResolveLicense(level Level, policyMode string, hasLicense bool) bool {
	switch policyMode {
	case ModeIncludedWithAccess:
		return level == Full
	case ModeAddon:
		return level == Full && hasLicense
	default:
		// DISALLOW and anything unrecognized.
		return false
	}
}
