package stub

import "sync"

// DRM is a no-op DRM controller. It records captured content-protection
// metadata and can replay license events to the registered handler.
type DRM struct {
	mu       sync.Mutex
	captured [][]byte
	handler  func(data []byte)
}

// NewDRM creates a no-op DRM controller.
func NewDRM() *DRM {
	return &DRM{}
}

// CaptureContentProtection records the metadata.
func (d *DRM) CaptureContentProtection(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captured = append(d.captured, data)
	return nil
}

// OnLicenseMetadata registers the session's license event handler.
func (d *DRM) OnLicenseMetadata(fn func(data []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = fn
}

// EmitLicenseMetadata forwards data to the registered handler, if any.
func (d *DRM) EmitLicenseMetadata(data []byte) {
	d.mu.Lock()
	fn := d.handler
	d.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// Captured returns the content-protection payloads seen so far.
func (d *DRM) Captured() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.captured))
	copy(out, d.captured)
	return out
}
