package telemetry

// Span attribute keys.
const (
	AttrSessionID = "mapcam.session.id"
	AttrViewID    = "mapcam.view.id"
	AttrOperation = "mapcam.camera.operation"
	AttrBody      = "mapcam.dispatch.body"
)
