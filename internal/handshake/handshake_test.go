package handshake

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/transport"
)

var testFamilies = Families{A: "RoleA", B: "RoleB"}

func TestParseBrand(t *testing.T) {
	testCases := []struct {
		raw  string
		want Brand
	}{
		{"Minecraft/Fabric/1.18.2", Brand{Raw: "Minecraft/Fabric/1.18.2", Family: "Minecraft", Loader: "Fabric", Version: "1.18.2"}},
		{"TModLoader/2022.9", Brand{Raw: "TModLoader/2022.9", Family: "TModLoader", Version: "2022.9"}},
		{"Minecraft", Brand{Raw: "Minecraft", Family: "Minecraft"}},
		{"", Brand{}},
		{"RoleB/loader/x/2.0", Brand{Raw: "RoleB/loader/x/2.0", Family: "RoleB", Loader: "loader", Version: "2.0"}},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseBrand(tc.raw))
		})
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name    string
		pkt     protocol.Packet
		role    Role
		wantErr error
	}{
		{"role a", &protocol.Connect{Brand: "RoleA/1.0"}, RoleA, nil},
		{"role b with loader", &protocol.Connect{Brand: "RoleB/loader/2.0"}, RoleB, nil},
		{"bare family", &protocol.Connect{Brand: "RoleB"}, RoleB, nil},
		{"unknown brand", &protocol.Connect{Brand: "Unknown/1.0"}, 0, ErrUnsupportedBrand},
		{"prefix only", &protocol.Connect{Brand: "RoleAX/1.0"}, 0, ErrUnsupportedBrand},
		{"wrong packet", &protocol.AdvanceState{BridgeInfo: "x"}, 0, ErrUnexpectedPacket},
		{"disconnect first", &protocol.Disconnect{Reason: "x"}, 0, ErrUnexpectedPacket},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			role, _, err := Classify(tc.pkt, testFamilies)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.role, role)
		})
	}
}

func TestClassifyErrorData(t *testing.T) {
	_, _, err := Classify(&protocol.Connect{Brand: "Unknown/1.0"}, testFamilies)
	var brandErr *UnsupportedBrandError
	require.ErrorAs(t, err, &brandErr)
	assert.Equal(t, "Unknown/1.0", brandErr.Brand)

	_, _, err = Classify(&protocol.Disconnect{}, testFamilies)
	var pktErr *UnexpectedPacketError
	require.ErrorAs(t, err, &pktErr)
	assert.Equal(t, protocol.OpDisconnect, pktErr.Opcode)
}

func TestRoleHelpers(t *testing.T) {
	assert.Equal(t, RoleB, RoleA.Other())
	assert.Equal(t, RoleA, RoleB.Other())
	assert.Equal(t, "RoleA", RoleA.String())
	assert.Equal(t, "Minecraft", DefaultFamilies().Name(RoleA))
	assert.Equal(t, "TModLoader", DefaultFamilies().Name(RoleB))
}

func newPipe(t *testing.T) (*transport.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	c := transport.NewConn(server)
	t.Cleanup(func() {
		c.Close()
		client.Close()
	})
	return c, client
}

func send(t *testing.T, nc net.Conn, p protocol.Packet) {
	t.Helper()
	frame, err := protocol.Encode(p)
	require.NoError(t, err)
	go func() { _, _ = nc.Write(frame) }()
}

func TestNegotiateClassified(t *testing.T) {
	c, client := newPipe(t)
	send(t, client, &protocol.Connect{Brand: "RoleA/1.0"})

	res, err := NewNegotiator(testFamilies, time.Second).Negotiate(c)
	require.NoError(t, err)
	assert.Equal(t, Classified, res.State)
	assert.Equal(t, RoleA, res.Role)
	assert.Equal(t, "1.0", res.Brand.Version)
}

func TestNegotiateRejected(t *testing.T) {
	c, client := newPipe(t)
	send(t, client, &protocol.Connect{Brand: "Unknown/1.0"})

	res, err := NewNegotiator(testFamilies, time.Second).Negotiate(c)
	assert.ErrorIs(t, err, ErrUnsupportedBrand)
	assert.Equal(t, Rejected, res.State)
}

func TestNegotiateTimeout(t *testing.T) {
	c, _ := newPipe(t)

	_, err := NewNegotiator(testFamilies, 20*time.Millisecond).Negotiate(c)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNegotiateZeroByteRead(t *testing.T) {
	c, client := newPipe(t)
	client.Close()

	_, err := NewNegotiator(testFamilies, time.Second).Negotiate(c)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, transport.ErrZeroByteRead)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestNegotiateMalformed(t *testing.T) {
	c, client := newPipe(t)
	go func() { _, _ = client.Write([]byte{0x09}) }()

	_, err := NewNegotiator(testFamilies, time.Second).Negotiate(c)
	assert.ErrorIs(t, err, protocol.ErrUnknownOpcode)
	assert.NotErrorIs(t, err, ErrIOFailure)
}

func TestReject(t *testing.T) {
	c, client := newPipe(t)

	go Reject(c, SequenceReason(&UnsupportedBrandError{Brand: "x"}))

	pkt, err := protocol.Decode(client)
	require.NoError(t, err)
	assert.Equal(t, &protocol.Disconnect{Reason: `Invalid connection sequence: handshake: unsupported brand "x"`}, pkt)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed after reject")
	}
}
