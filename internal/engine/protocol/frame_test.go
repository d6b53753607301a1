package protocol

import (
	"net"
	"testing"
	"time"

	"Go2TraceSpectra/internal/core/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTCPFrame(t *testing.T, syn, ack bool, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 10, 10, 2),
		DstIP:    net.IPv4(10, 10, 10, 10),
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 1414, SYN: syn, ACK: ack, Window: 64240}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestParseFrame_TCP(t *testing.T) {
	data := buildTCPFrame(t, false, true, make([]byte, 268))
	ts := time.Date(2025, 9, 7, 16, 50, 53, 123456000, time.UTC)

	res := ParseFrame(data, layers.LinkTypeEthernet, gopacket.CaptureInfo{Timestamp: ts, Length: len(data), CaptureLength: len(data)})
	require.True(t, res.IsMatched(), res.Reason)

	rec := res.Record
	assert.Equal(t, "16:50:53.123456", rec.Timestamp)
	assert.Equal(t, model.Endpoint{Host: "10.10.10.2", Port: 40000}, rec.Source)
	assert.Equal(t, model.Endpoint{Host: "10.10.10.10", Port: 1414}, rec.Destination)
	assert.Equal(t, 268, rec.Length)
	assert.Equal(t, model.FlagKindACK, rec.Flags.Kind())
}

func TestParseFrame_SYN(t *testing.T) {
	data := buildTCPFrame(t, true, false, nil)
	res := ParseFrame(data, layers.LinkTypeEthernet, gopacket.CaptureInfo{Timestamp: time.Now()})
	require.True(t, res.IsMatched())
	assert.Equal(t, model.FlagKindSYN, res.Record.Flags.Kind())
	assert.Equal(t, 0, res.Record.Length)
}

func TestParseFrame_SkipsNonIPv4(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0, 1, 2, 3, 4, 5},
		SourceProtAddress: []byte{10, 10, 10, 2},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 10, 10, 10},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp))

	res := ParseFrame(buf.Bytes(), layers.LinkTypeEthernet, gopacket.CaptureInfo{})
	assert.False(t, res.IsMatched())
	assert.Equal(t, Skipped, res.Status)
}
