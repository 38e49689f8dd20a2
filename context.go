package authcore

import "context"

type clientKey struct{}

// client is what the transport knows about the caller.
type client struct {
	IP        string
	UserAgent string
}

func withClient(ctx context.Context, fn func(*client)) context.Context {
	c := clientFrom(ctx)
	fn(&c)
	return context.WithValue(ctx, clientKey{}, c)
}

// WithClientIP attaches the caller's IP address to ctx. Login records it on
// the session and every security event carries it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return withClient(ctx, func(c *client) { c.IP = ip })
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return withClient(ctx, func(c *client) { c.UserAgent = userAgent })
}

func clientFrom(ctx context.Context) client {
	if ctx == nil {
		return client{}
	}
	c, _ := ctx.Value(clientKey{}).(client)
	return c
}
