package matcher

// Select returns the candidates matching p, in their original order.
func Select(candidates []string, p Pattern) ([]string, error) {
	var matched []string
	for _, c := range candidates {
		if p.Match(c) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, &NoMatchError{Pattern: p.String(), Candidates: candidates}
	}
	return matched, nil
}

// SelectOne returns the only candidate matching p.
func SelectOne(candidates []string, p Pattern) (string, error) {
	matched, err := Select(candidates, p)
	if err != nil {
		return "", err
	}
	if len(matched) > 1 {
		return "", &AmbiguousMatchError{Pattern: p.String(), Matches: matched}
	}
	return matched[0], nil
}
