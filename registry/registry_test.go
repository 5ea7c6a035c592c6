package registry

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
)

var (
	public  = Endpoint{URL: "https://api.softlayer.com/xmlrpc/v3", Weight: 1, Network: "public"}
	private = Endpoint{URL: "https://api.service.softlayer.com/xmlrpc/v3", Weight: 1, Network: "private"}
)

func TestStaticDefaults(t *testing.T) {
	c := qt.New(t)
	reg := NewStaticRegistry(public)

	eps, err := reg.Discover(context.Background(), "SoftLayer_Account")
	c.Assert(err, qt.IsNil)
	c.Assert(eps, qt.DeepEquals, []Endpoint{public})
}

func TestStaticOverride(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	reg := NewStaticRegistry(public)
	c.Assert(reg.Register(ctx, "SoftLayer_Ticket", private, 0), qt.IsNil)

	eps, _ := reg.Discover(ctx, "SoftLayer_Ticket")
	c.Assert(eps, qt.DeepEquals, []Endpoint{private})
	eps, _ = reg.Discover(ctx, "SoftLayer_Account")
	c.Assert(eps, qt.DeepEquals, []Endpoint{public})

	// re-registering the same URL updates in place
	updated := private
	updated.Weight = 7
	c.Assert(reg.Register(ctx, "SoftLayer_Ticket", updated, 0), qt.IsNil)
	eps, _ = reg.Discover(ctx, "SoftLayer_Ticket")
	c.Assert(eps, qt.DeepEquals, []Endpoint{updated})

	c.Assert(reg.Deregister(ctx, "SoftLayer_Ticket", private.URL), qt.IsNil)
	eps, _ = reg.Discover(ctx, "SoftLayer_Ticket")
	c.Assert(eps, qt.DeepEquals, []Endpoint{public})
}

func TestStaticErrors(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	reg := NewStaticRegistry()

	err := reg.Register(ctx, "SoftLayer_Account", Endpoint{}, 0)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)

	err = reg.Deregister(ctx, "SoftLayer_Account", "https://nowhere")
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)

	eps, err := reg.Discover(ctx, "SoftLayer_Account")
	c.Assert(err, qt.IsNil)
	c.Assert(eps, qt.HasLen, 0)
}

func TestStaticDiscoverReturnsCopy(t *testing.T) {
	c := qt.New(t)
	reg := NewStaticRegistry(public)
	eps, _ := reg.Discover(context.Background(), "SoftLayer_Account")
	eps[0].URL = "mutated"

	again, _ := reg.Discover(context.Background(), "SoftLayer_Account")
	c.Assert(again[0].URL, qt.Equals, public.URL)
}

func TestStaticWatch(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewStaticRegistry(public)

	updates := reg.Watch(ctx, "SoftLayer_Ticket")
	c.Assert(reg.Register(ctx, "SoftLayer_Ticket", private, 0), qt.IsNil)

	select {
	case eps := <-updates:
		c.Assert(eps, qt.DeepEquals, []Endpoint{private})
	case <-time.After(time.Second):
		c.Fatal("no watch update")
	}

	// changing the defaults reaches watchers of services without their own entry
	account := reg.Watch(ctx, "SoftLayer_Account")
	c.Assert(reg.Register(ctx, DefaultService, private, 0), qt.IsNil)
	select {
	case eps := <-account:
		c.Assert(eps, qt.DeepEquals, []Endpoint{public, private})
	case <-time.After(time.Second):
		c.Fatal("no watch update for default change")
	}

	cancel()
	select {
	case _, ok := <-updates:
		c.Assert(ok, qt.IsFalse)
	case <-time.After(time.Second):
		c.Fatal("watch channel not closed")
	}
}
