// Package businessflow contains the audience sync use cases and the admin reporting flows
package businessflow

import "context"

// ClientMetadata holds caller information recorded in the sync audit log
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Producer  string `json:"producer,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID for tracking
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

type metadataKey struct{}

// WithClientMetadata attaches caller information to ctx
func WithClientMetadata(ctx context.Context, md *ClientMetadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// ClientMetadataFrom returns the caller information attached to ctx, or nil
func ClientMetadataFrom(ctx context.Context) *ClientMetadata {
	md, _ := ctx.Value(metadataKey{}).(*ClientMetadata)
	return md
}
