package source

import "context"

// HttpRequest is what the core hands to the injected HTTP bridge.
type HttpRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// HttpResponse is what the injected HTTP bridge must hand back, even on a
// transport failure (status 0 signals a transport error per spec §4.11).
type HttpResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// HttpBridge is the synchronous request/response contract the plugin's net
// import depends on. The core makes no assumption about how the bridge
// achieves synchrony from the caller's perspective; it only requires the
// call to block until a response (or a status-0 transport failure) is
// available.
type HttpBridge interface {
	Request(ctx context.Context, req HttpRequest) (HttpResponse, error)
}

// SettingsGetter is the collaborator the defaults import reads through.
type SettingsGetter interface {
	GetSetting(ctx context.Context, key string) (any, bool)
}

// SettingsSetter is the collaborator the defaults import writes through.
type SettingsSetter interface {
	SetSetting(ctx context.Context, key string, value any) error
}
