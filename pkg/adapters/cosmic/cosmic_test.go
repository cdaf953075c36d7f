package cosmic

import (
	"context"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/wayland"
	"github.com/winctx/winctx/pkg/window"
)

func testAdapter(t *testing.T) (*Adapter, net.Conn, *hub.Hub) {
	t.Helper()
	srv, cli := net.Pipe()
	h := hub.New()
	a := newAdapter(wayland.NewConn(cli, zerolog.Nop()), h, zerolog.Nop())
	t.Cleanup(func() {
		a.Close()
		srv.Close()
	})
	return a, srv, h
}

func sendEvent(t *testing.T, w net.Conn, req *wayland.Request) {
	t.Helper()
	buf, err := req.Encode()
	if err != nil {
		t.Errorf("encode event: %v", err)
		return
	}
	if _, err := w.Write(buf); err != nil {
		t.Errorf("write event: %v", err)
	}
}

func readRequest(t *testing.T, r net.Conn) wayland.Message {
	t.Helper()
	msg, err := wayland.ReadMessage(r)
	if err != nil {
		t.Errorf("read request: %v", err)
		return wayland.Message{}
	}
	return msg
}

func uint32Arg(t *testing.T, msg wayland.Message) uint32 {
	t.Helper()
	v, err := msg.Args().Uint32()
	if err != nil {
		t.Errorf("decode request arg: %v", err)
	}
	return v
}

// bindNewID checks a registry bind request and returns the object ID
// the client chose for the global.
func bindNewID(t *testing.T, msg wayland.Message, wantIface string) uint32 {
	t.Helper()
	args := msg.Args()
	if _, err := args.Uint32(); err != nil {
		t.Errorf("decode bind name: %v", err)
		return 0
	}
	iface, err := args.String()
	if err != nil {
		t.Errorf("decode bind interface: %v", err)
		return 0
	}
	if iface != wantIface {
		t.Errorf("bind interface = %q, want %q", iface, wantIface)
	}
	if _, err := args.Uint32(); err != nil {
		t.Errorf("decode bind version: %v", err)
		return 0
	}
	id, err := args.Uint32()
	if err != nil {
		t.Errorf("decode bind new id: %v", err)
	}
	return id
}

func stateBytes(states ...uint32) []byte {
	b := make([]byte, 4*len(states))
	for i, s := range states {
		binary.LittleEndian.PutUint32(b[4*i:], s)
	}
	return b
}

func announceGlobals(t *testing.T, srv net.Conn, globals ...wayland.Global) uint32 {
	t.Helper()
	regID := uint32Arg(t, readRequest(t, srv)) // get_registry
	cb := uint32Arg(t, readRequest(t, srv))    // sync
	for _, g := range globals {
		sendEvent(t, srv, wayland.NewRequest(regID, 0).
			PutUint32(g.Name).
			PutString(g.Interface).
			PutUint32(g.Version))
	}
	sendEvent(t, srv, wayland.NewRequest(cb, 0).PutUint32(1))
	sendEvent(t, srv, wayland.NewRequest(wayland.DisplayID, 1).PutUint32(cb))
	return regID
}

func waitUpdate(t *testing.T, ch <-chan window.Context) window.Context {
	t.Helper()
	select {
	case ctx := <-ch:
		return ctx
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a context update")
		return window.Context{}
	}
}

func TestRunTracksToplevelsV2(t *testing.T) {
	a, srv, h := testAdapter(t)
	updates, cancelSub := h.Subscribe()
	defer cancelSub()

	proceed := make(chan struct{})
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		announceGlobals(t, srv,
			wayland.Global{Name: 1, Interface: infoInterface, Version: 2},
			wayland.Global{Name: 2, Interface: listInterface, Version: 1})
		infoID := bindNewID(t, readRequest(t, srv), infoInterface)
		listID := bindNewID(t, readRequest(t, srv), listInterface)

		cb := uint32Arg(t, readRequest(t, srv)) // second sync

		const foreign1 = uint32(0xff000001)
		sendEvent(t, srv, wayland.NewRequest(listID, listEvtToplevel).PutUint32(foreign1))
		req := readRequest(t, srv)
		if req.Object != infoID || req.Opcode != infoReqGetCosmicToplevel {
			t.Errorf("request = object %d opcode %d, want get_cosmic_toplevel", req.Object, req.Opcode)
		}
		args := req.Args()
		cosmic1, _ := args.Uint32()
		if paired, _ := args.Uint32(); paired != foreign1 {
			t.Errorf("get_cosmic_toplevel foreign = %d, want %d", paired, foreign1)
		}
		sendEvent(t, srv, wayland.NewRequest(foreign1, foreignEvtTitle).PutString("Alacritty"))
		sendEvent(t, srv, wayland.NewRequest(foreign1, foreignEvtAppID).PutString("com.alacritty.Alacritty"))
		sendEvent(t, srv, wayland.NewRequest(cosmic1, cosmicEvtState).PutArray(stateBytes(stateActivated)))
		sendEvent(t, srv, wayland.NewRequest(cb, 0).PutUint32(3))
		sendEvent(t, srv, wayland.NewRequest(wayland.DisplayID, 1).PutUint32(cb))

		<-proceed // focus moves to a second window
		const foreign2 = uint32(0xff000002)
		sendEvent(t, srv, wayland.NewRequest(listID, listEvtToplevel).PutUint32(foreign2))
		req = readRequest(t, srv)
		args = req.Args()
		cosmic2, _ := args.Uint32()
		sendEvent(t, srv, wayland.NewRequest(foreign2, foreignEvtTitle).PutString("Mozilla Firefox"))
		sendEvent(t, srv, wayland.NewRequest(foreign2, foreignEvtAppID).PutString("org.mozilla.firefox"))
		sendEvent(t, srv, wayland.NewRequest(cosmic2, cosmicEvtState).PutArray(stateBytes(0, stateActivated)))

		<-proceed // title change on the focused window
		sendEvent(t, srv, wayland.NewRequest(foreign2, foreignEvtTitle).PutString("Example Domain - Mozilla Firefox"))

		<-proceed // focused window closes
		sendEvent(t, srv, wayland.NewRequest(cosmic2, cosmicEvtClosed))
		req = readRequest(t, srv)
		if req.Object != foreign2 || req.Opcode != foreignReqDestroy {
			t.Errorf("request = object %d opcode %d, want foreign handle destroy", req.Object, req.Opcode)
		}
		req = readRequest(t, srv)
		if req.Object != cosmic2 || req.Opcode != cosmicReqDestroy {
			t.Errorf("request = object %d opcode %d, want cosmic handle destroy", req.Object, req.Opcode)
		}
		sendEvent(t, srv, wayland.NewRequest(wayland.DisplayID, 1).PutUint32(cosmic2))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	first := waitUpdate(t, updates)
	if first.AppID != "com.alacritty.Alacritty" || first.AppClass != "com.alacritty.Alacritty" {
		t.Errorf("first update app = %q/%q, want com.alacritty.Alacritty", first.AppID, first.AppClass)
	}
	if first.Title != "Alacritty" {
		t.Errorf("first update title = %q, want Alacritty", first.Title)
	}
	if first.Source != window.KindCosmic {
		t.Errorf("first update source = %q, want %q", first.Source, window.KindCosmic)
	}
	proceed <- struct{}{}

	second := waitUpdate(t, updates)
	if second.AppID != "org.mozilla.firefox" || second.Title != "Mozilla Firefox" {
		t.Errorf("second update = %q %q, want firefox activation", second.AppID, second.Title)
	}
	proceed <- struct{}{}

	third := waitUpdate(t, updates)
	if third.AppID != "org.mozilla.firefox" || third.Title != "Example Domain - Mozilla Firefox" {
		t.Errorf("third update = %q %q, want republished title", third.AppID, third.Title)
	}
	proceed <- struct{}{}

	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("fake compositor did not finish")
	}

	// Closing the focused window keeps the last context current.
	if cur, ok := h.Current(); !ok || cur.AppID != "org.mozilla.firefox" {
		t.Errorf("Current() after close = %+v %v, want last context kept", cur, ok)
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRunTracksToplevelsV1(t *testing.T) {
	a, srv, h := testAdapter(t)
	updates, cancelSub := h.Subscribe()
	defer cancelSub()

	go func() {
		announceGlobals(t, srv,
			wayland.Global{Name: 1, Interface: infoInterface, Version: 1})
		infoID := bindNewID(t, readRequest(t, srv), infoInterface)

		cb := uint32Arg(t, readRequest(t, srv))
		const handle = uint32(0xff000001)
		sendEvent(t, srv, wayland.NewRequest(infoID, infoEvtToplevel).PutUint32(handle))
		sendEvent(t, srv, wayland.NewRequest(handle, cosmicEvtTitle).PutString("COSMIC Settings"))
		sendEvent(t, srv, wayland.NewRequest(handle, cosmicEvtAppID).PutString("com.system76.CosmicSettings"))
		sendEvent(t, srv, wayland.NewRequest(handle, cosmicEvtState).PutArray(stateBytes(stateActivated)))
		sendEvent(t, srv, wayland.NewRequest(cb, 0).PutUint32(2))
		sendEvent(t, srv, wayland.NewRequest(wayland.DisplayID, 1).PutUint32(cb))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	got := waitUpdate(t, updates)
	if got.AppID != "com.system76.CosmicSettings" {
		t.Errorf("AppID = %q, want com.system76.CosmicSettings", got.AppID)
	}
	if got.Title != "COSMIC Settings" {
		t.Errorf("Title = %q, want COSMIC Settings", got.Title)
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRunFailsWithoutCosmicProtocol(t *testing.T) {
	a, srv, _ := testAdapter(t)

	go func() {
		announceGlobals(t, srv,
			wayland.Global{Name: 1, Interface: "wl_compositor", Version: 5})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "does not advertise") {
		t.Errorf("Run() error = %v, want missing protocol error", err)
	}
}

func TestRunFailsWithoutForeignListOnV2(t *testing.T) {
	a, srv, _ := testAdapter(t)

	go func() {
		announceGlobals(t, srv,
			wayland.Global{Name: 1, Interface: infoInterface, Version: 2})
		bindNewID(t, readRequest(t, srv), infoInterface)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), listInterface) {
		t.Errorf("Run() error = %v, want missing %s error", err, listInterface)
	}
}

func TestActivated(t *testing.T) {
	tests := []struct {
		states []uint32
		want   bool
	}{
		{nil, false},
		{[]uint32{0}, false},
		{[]uint32{0, 0, 0, 0}, false},
		{[]uint32{stateActivated}, true},
		{[]uint32{0, stateActivated, 3}, true},
		{[]uint32{1, 3}, false},
	}
	for _, tt := range tests {
		if got := activated(tt.states); got != tt.want {
			t.Errorf("activated(%v) = %v, want %v", tt.states, got, tt.want)
		}
	}
}

func TestPublishFillsPlaceholders(t *testing.T) {
	h := hub.New()
	a := newAdapter(nil, h, zerolog.Nop())

	a.publish(&toplevel{})
	got, ok := h.Current()
	if !ok {
		t.Fatal("Current() ok = false after publish")
	}
	if got.AppID != window.NoCosmicAppClass || got.Title != window.NoCosmicTitle {
		t.Errorf("placeholders = %q %q, want %q %q",
			got.AppID, got.Title, window.NoCosmicAppClass, window.NoCosmicTitle)
	}

	a.publish(&toplevel{appID: "com.example.App"})
	got, _ = h.Current()
	if got.AppID != "com.example.App" || got.Title != window.NoCosmicTitle {
		t.Errorf("partial context = %q %q, want real app id with title placeholder", got.AppID, got.Title)
	}
}
