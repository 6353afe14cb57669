package notify

import "context"

// Gateway delivers operator notifications. Implementations never return
// errors or panic: every transport failure is logged and reported as false.
type Gateway interface {
	SendText(ctx context.Context, msg string) bool
	SendFile(ctx context.Context, path, title, caption string) bool
}

// FileCapable is implemented by gateways that know whether SendFile can ever
// succeed.
type FileCapable interface {
	SupportsFiles() bool
}

// SupportsFiles reports whether gw can deliver files. Gateways that do not
// implement FileCapable are assumed to.
func SupportsFiles(gw Gateway) bool {
	if fc, ok := gw.(FileCapable); ok {
		return fc.SupportsFiles()
	}

	return true
}
