package errors

func InvalidParamsErr(err error) error {
	return E(Invalid, "invalid params", err)
}

func ValidationFailedErr(err error) error {
	return E(Invalid, "validation failed", err)
}

func EmptyParamErr(field string) error {
	ve := ValidationErrs()
	ve.Add(field, "cannot be empty")
	return E(Invalid, "validation failed", ve.Err())
}

// UnavailableErr marks a dependency that could not be reached.
func UnavailableErr(dependency string, err error) error {
	return E(Unavailable, dependency+" unavailable", err)
}
