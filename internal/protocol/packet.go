// Package protocol defines the packet catalog and wire codec shared by both
// client families of the bridge.
//
// A frame is one opcode byte followed by the packet's fields in declaration
// order. There is no frame length prefix, so every packet must be made of
// self-delimiting fields.
package protocol

import (
	"fmt"
	"reflect"
	"strings"
)

// Opcode identifies a packet variant on the wire.
type Opcode uint8

// Opcode constants.
const (
	OpConnect      Opcode = 0x00 // client → bridge: brand announcement
	OpDisconnect   Opcode = 0x01 // bridge → client: rejection with reason
	OpAdvanceState Opcode = 0x02 // bridge → client: handshake accepted
)

// Packet is one variant of the closed packet union. Values are always
// pointers to one of the catalog structs.
type Packet interface {
	Opcode() Opcode
	// fields returns pointers to the packet's fields in wire order.
	fields() []any
}

// Connect is the first packet every client sends. Brand is a slash
// separated string whose first segment names the client family.
type Connect struct {
	Brand string
}

// Disconnect tells a client why the bridge is dropping it.
type Disconnect struct {
	Reason string
}

// AdvanceState tells a client the bridge accepted its handshake.
type AdvanceState struct {
	BridgeInfo string
}

func (*Connect) Opcode() Opcode      { return OpConnect }
func (*Disconnect) Opcode() Opcode   { return OpDisconnect }
func (*AdvanceState) Opcode() Opcode { return OpAdvanceState }

func (p *Connect) fields() []any      { return []any{&p.Brand} }
func (p *Disconnect) fields() []any   { return []any{&p.Reason} }
func (p *AdvanceState) fields() []any { return []any{&p.BridgeInfo} }

type entry struct {
	name string
	new  func() Packet
}

// catalog is the single source of truth for the wire contract. Adding a
// packet means adding a struct above and one row here.
var catalog = map[Opcode]entry{
	OpConnect:      {"Connect", func() Packet { return &Connect{} }},
	OpDisconnect:   {"Disconnect", func() Packet { return &Disconnect{} }},
	OpAdvanceState: {"AdvanceState", func() Packet { return &AdvanceState{} }},
}

// Lookup returns the variant name registered for op.
func Lookup(op Opcode) (string, bool) {
	e, ok := catalog[op]
	return e.name, ok
}

func (op Opcode) String() string {
	if name, ok := Lookup(op); ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02x)", uint8(op))
}

// Describe renders a packet for debug logs, e.g. Connect{"Minecraft/Fabric/1.18.2"}.
func Describe(p Packet) string {
	var b strings.Builder
	b.WriteString(p.Opcode().String())
	b.WriteByte('{')
	for i, f := range p.fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%#v", reflect.ValueOf(f).Elem().Interface())
	}
	b.WriteByte('}')
	return b.String()
}
