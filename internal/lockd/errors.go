package lockd

// busyError signals the key is held by someone else.
type busyError struct{ key string }

func (e busyError) Error() string { return "lock busy: " + e.key }

// IsBusy reports whether err means the lock is currently held elsewhere.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// notOwnerError signals a release with a token that no longer owns the key.
type notOwnerError struct{ key string }

func (e notOwnerError) Error() string { return "not lock owner: " + e.key }

// IsNotOwner reports whether err means the release token lost ownership.
func IsNotOwner(err error) bool {
	_, ok := err.(notOwnerError)
	return ok
}

// expiredError signals a renew after the lease already lapsed.
type expiredError struct{ key string }

func (e expiredError) Error() string { return "lock lease expired: " + e.key }

// IsExpired reports whether err means the lease lapsed before renewal.
func IsExpired(err error) bool {
	_, ok := err.(expiredError)
	return ok
}
