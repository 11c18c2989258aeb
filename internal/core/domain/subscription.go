package domain

// Subscription ties a viewer connection to a named geographic area. The
// bounds are applied once, to the snapshot pushed at subscribe time; live
// broadcasts are not filtered by them.
type Subscription struct {
	ConnectionID string
	AreaKey      string
	Bounds       BoundingBox
}
