package descriptor

// Merge layers override on top of base and returns a new descriptor.
//
// A colorMode set in override replaces base's. Breakpoints, font stacks and
// theme extensions merge key by key with override winning; base keys keep
// their order and new keys are appended. Content, purge and plugin lists are
// replaced wholesale when override has them. Neither input is modified.
func Merge(base, override *Descriptor) *Descriptor {
	out := base.Clone()
	if out == nil {
		out = &Descriptor{}
	}
	if override == nil {
		return out
	}

	if override.ColorMode != "" {
		out.ColorMode = override.ColorMode
	}
	if override.ContentPatterns != nil {
		out.ContentPatterns = cloneStrings(override.ContentPatterns)
	}
	if override.LegacyScanPatterns != nil {
		out.LegacyScanPatterns = cloneStrings(override.LegacyScanPatterns)
	}
	if override.Plugins != nil {
		out.Plugins = cloneStrings(override.Plugins)
	}

	out.Breakpoints = mergeOrdered(out.Breakpoints, override.Breakpoints, nil)
	out.FontStacks = mergeOrdered(out.FontStacks, override.FontStacks, cloneStrings)
	out.ThemeExtensions = mergeOrdered(out.ThemeExtensions, override.ThemeExtensions, cloneValue)

	for _, key := range override.Ignored {
		if !contains(out.Ignored, key) {
			out.Ignored = append(out.Ignored, key)
		}
	}
	return out
}

// mergeOrdered writes over's entries into base, which must already be a copy.
func mergeOrdered[V any](base, over *Ordered[V], copyValue func(V) V) *Ordered[V] {
	if over == nil {
		return base
	}
	if base == nil {
		return over.Clone(copyValue)
	}
	for _, k := range over.keys {
		v := over.values[k]
		if copyValue != nil {
			v = copyValue(v)
		}
		base.Set(k, v)
	}
	return base
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
