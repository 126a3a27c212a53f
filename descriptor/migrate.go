package descriptor

// MigrateLegacy moves the deprecated purge globs into content and drops the
// purge field. Descriptors already on the current schema come back as an
// unchanged copy, so the operation is idempotent.
//
// A nil descriptor migrates to an empty one, matching Merge.
//
// When both fields hold globs that differ as sets the intent is unclear and
// an *AmbiguousMigrationError is returned instead of guessing.
func MigrateLegacy(d *Descriptor) (*Descriptor, error) {
	if d == nil {
		return &Descriptor{}, nil
	}
	out := d.Clone()
	if out.Schema() == SchemaCurrent {
		return out, nil
	}

	legacy := out.LegacyScanPatterns
	switch {
	case len(out.ContentPatterns) == 0:
		out.ContentPatterns = legacy
	case len(legacy) == 0, samePatternSet(out.ContentPatterns, legacy):
		// content already covers it
	default:
		return nil, &AmbiguousMigrationError{
			Content: cloneStrings(d.ContentPatterns),
			Legacy:  cloneStrings(d.LegacyScanPatterns),
		}
	}
	out.LegacyScanPatterns = nil
	return out, nil
}
