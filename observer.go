package session

import "context"

// Start subscribes to the provider's continuous principal feed. Only the
// first event is acted on: a present principal resolves into a token fetch
// and connection bind, an absent one redirects protected views to the login
// path. Either way the session is marked loaded. Later feed events (e.g.
// background token refresh) are absorbed by the resolved latch so they never
// re-run connection binding.
//
// Call Close when the owning scope is torn down; the subscription must not
// outlive it.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	unsubscribe, err := c.provider.OnPrincipalChanged(func(principal Principal) {
		c.handlePrincipalChanged(ctx, principal)
	})
	if err != nil {
		return withSource(ErrUnknown, err)
	}

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	return nil
}

// Close releases the provider subscription and any open connection handle.
// Safe to call more than once.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	conn := c.conn
	c.conn = nil
	c.signedIn = false
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.closeHandle(context.Background(), conn)

	return nil
}

func (c *Coordinator) handlePrincipalChanged(ctx context.Context, principal Principal) {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		c.logger.Debug("principal feed event after resolution, ignoring")
		return
	}
	c.resolved = true
	gen := c.attempt
	c.mu.Unlock()

	// A non-zero generation means a credential operation already started;
	// the user is driving and the feed resolution must not rebind or
	// redirect underneath them.
	if gen != 0 {
		c.logger.Debug("credential operation precedes feed resolution, skipping")
		c.markLoaded()
		return
	}

	if principal == nil {
		c.redirectUnauthenticated(ctx)
		c.markLoaded()
		return
	}

	if err := c.establish(ctx, gen, principal); err != nil {
		c.logger.Error("unable to restore session for %s: %v", principal.ID(), err)
	}
	c.markLoaded()
}

// redirectUnauthenticated requests a navigation to the login view unless the
// current view is already one of the public ones.
func (c *Coordinator) redirectUnauthenticated(ctx context.Context) {
	if c.router == nil {
		return
	}

	current := c.router.CurrentPath()
	for _, public := range c.cfg.GetPublicPaths() {
		if current == public {
			return
		}
	}

	if err := c.router.Push(c.cfg.GetLoginPath()); err != nil {
		c.logger.Error("redirect to login failed: %v", err)
		return
	}

	c.record(ctx, ActivityEventRedirectToLogin, "", map[string]any{
		"from": current,
	})
}

// markLoaded latches the loaded flag after the first resolution attempt,
// success or redirect alike. It never reverts.
func (c *Coordinator) markLoaded() {
	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
}
