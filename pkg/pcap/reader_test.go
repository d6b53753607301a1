package pcap

import (
	"bufio"
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/protocol"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpFrame(t *testing.T, dst net.IP, syn bool, payload int) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.IPv4(10, 10, 10, 2), DstIP: dst}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 1414, SYN: syn, ACK: !syn, PSH: !syn && payload > 0, Window: 64240}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(make([]byte, payload))))
	return buf.Bytes()
}

func writePcap(t *testing.T, frames ...[]byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	ts := time.Date(2025, 9, 7, 16, 50, 53, 0, time.UTC)
	for i, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(f), Length: len(f)}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return out.Bytes()
}

func collect(t *testing.T, r *Reader) ([]protocol.ParseResult, error) {
	t.Helper()
	var out []protocol.ParseResult
	for res, err := range r.Results() {
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func TestDetect(t *testing.T) {
	data := writePcap(t)
	assert.Equal(t, FormatPcap, Detect(bufio.NewReader(bytes.NewReader(data))))
	assert.Equal(t, FormatPcapNG, Detect(bufio.NewReader(bytes.NewReader([]byte{0x0a, 0x0d, 0x0d, 0x0a, 0, 0}))))
	assert.Equal(t, FormatText, Detect(bufio.NewReader(strings.NewReader("10:00:00.1 IP 1.2.3.4.5 > 1.2.3.5.6: x"))))
	assert.Equal(t, FormatText, Detect(bufio.NewReader(strings.NewReader(""))))
}

func TestReader_Pcap(t *testing.T) {
	qm1 := net.IPv4(10, 10, 10, 10)
	data := writePcap(t, tcpFrame(t, qm1, true, 0), tcpFrame(t, qm1, false, 268), tcpFrame(t, net.IPv4(10, 10, 10, 11), false, 36))

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, FormatPcap, r.Format())
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	results, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.True(t, res.IsMatched(), res.Reason)
	}
	assert.Equal(t, model.FlagKindSYN, results[0].Record.Flags.Kind())
	assert.Equal(t, "16:50:53.000000", results[0].Record.Timestamp)
	assert.Equal(t, 268, results[1].Record.Length)
	assert.Equal(t, model.FlagKindPSHACK, results[1].Record.Flags.Kind())
	assert.Equal(t, "10.10.10.11", results[2].Record.Destination.Host)
	assert.Equal(t, "16:50:53.002000", results[2].Record.Timestamp)
}

func TestReader_Truncated(t *testing.T) {
	data := writePcap(t, tcpFrame(t, net.IPv4(10, 10, 10, 10), false, 268), tcpFrame(t, net.IPv4(10, 10, 10, 10), false, 268))
	r, err := NewReader(bytes.NewReader(data[:len(data)-100]))
	require.NoError(t, err)

	results, err := collect(t, r)
	require.Error(t, err)
	assert.Len(t, results, 1)
}

func TestReader_StopEarly(t *testing.T) {
	f := tcpFrame(t, net.IPv4(10, 10, 10, 10), false, 10)
	r, err := NewReader(bytes.NewReader(writePcap(t, f, f, f)))
	require.NoError(t, err)

	n := 0
	for range r.Results() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.pcap")
	require.NoError(t, os.WriteFile(path, writePcap(t, tcpFrame(t, net.IPv4(10, 10, 10, 12), true, 0)), 0644))

	r, err := Open(path)
	require.NoError(t, err)
	results, err := collect(t, r)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	require.NoError(t, r.Close())

	_, err = Open(filepath.Join(dir, "missing.pcap"))
	assert.ErrorIs(t, err, model.ErrUpstreamRead)

	textPath := filepath.Join(dir, "trace.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("not a capture\n"), 0644))
	_, err = Open(textPath)
	assert.ErrorIs(t, err, model.ErrUpstreamRead)
}
