// tracegen writes a synthetic pcap of client sessions against the configured
// endpoint groups, for exercising trace-analyzer and the API.
package main

import (
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"Go2TraceSpectra/internal/config"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	clientMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	serverMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

type generator struct {
	w       *pcapgo.Writer
	rng     *rand.Rand
	now     time.Time
	client  net.IP
	port    layers.TCPPort
	sizes   []int
	written int
}

func (g *generator) write(src, dst net.IP, srcPort, dstPort layers.TCPPort, flags string, payload int) error {
	eth := &layers.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{SrcIP: src, DstIP: dst, Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP}
	tcp := &layers.TCP{SrcPort: srcPort, DstPort: dstPort, Seq: g.rng.Uint32(), Window: 64240}
	for _, f := range flags {
		switch f {
		case 'S':
			tcp.SYN = true
		case 'A':
			tcp.ACK = true
		case 'F':
			tcp.FIN = true
		case 'P':
			tcp.PSH = true
		}
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(make([]byte, payload))); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}

	g.now = g.now.Add(time.Duration(100+g.rng.IntN(900)) * time.Microsecond)
	ci := gopacket.CaptureInfo{Timestamp: g.now, CaptureLength: len(buf.Bytes()), Length: len(buf.Bytes())}
	if err := g.w.WritePacket(ci, buf.Bytes()); err != nil {
		return err
	}
	g.written++
	return nil
}

type step struct {
	toServer bool
	flags    string
	payload  int
}

// session writes a handshake, exchanges messages and tears the connection down.
func (g *generator) session(server net.IP, messages int) error {
	cport := layers.TCPPort(40000 + g.rng.IntN(20000))
	steps := []step{{true, "S", 0}, {false, "SA", 0}, {true, "A", 0}}
	for i := 0; i < messages; i++ {
		size := g.rng.IntN(1400) + 1
		if len(g.sizes) > 0 && g.rng.IntN(2) == 0 {
			size = g.sizes[g.rng.IntN(len(g.sizes))]
		}
		steps = append(steps, step{i%2 == 0, "PA", size})
	}
	steps = append(steps, step{true, "FA", 0}, step{false, "FA", 0})

	for _, s := range steps {
		var err error
		if s.toServer {
			err = g.write(g.client, server, cport, g.port, s.flags, s.payload)
		} else {
			err = g.write(server, g.client, g.port, cport, s.flags, s.payload)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var (
		configPath string
		output     string
		sessions   int
		messages   int
		client     string
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:   "tracegen",
		Short: "Generate a synthetic capture against the configured endpoint groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			var servers []net.IP
			for _, g := range cfg.Engine.EndpointGroups {
				for _, a := range g.Addresses {
					if ip := net.ParseIP(a).To4(); ip != nil {
						servers = append(servers, ip)
					}
				}
			}
			if len(servers) == 0 {
				return fmt.Errorf("no IPv4 endpoint addresses configured")
			}
			clientIP := net.ParseIP(client).To4()
			if clientIP == nil {
				return fmt.Errorf("invalid client address: '%s'", client)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()

			w := pcapgo.NewWriter(f)
			if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
				return fmt.Errorf("failed to write pcap header: %w", err)
			}

			g := &generator{
				w:      w,
				rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
				now:    time.Now().UTC(),
				client: clientIP,
				port:   layers.TCPPort(cfg.Engine.ServicePort),
			}
			for _, sig := range cfg.Engine.Signatures {
				g.sizes = append(g.sizes, sig.Length)
			}

			log.Printf("Generating %d sessions into %s...", sessions, output)
			for i := 0; i < sessions; i++ {
				if err := g.session(servers[g.rng.IntN(len(servers))], messages); err != nil {
					return err
				}
			}
			log.Printf("Successfully generated %d packets into %s.", g.written, output)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	flags.StringVarP(&output, "output", "o", "test.pcap", "Output pcap file path")
	flags.IntVarP(&sessions, "sessions", "n", 100, "Number of client sessions")
	flags.IntVarP(&messages, "messages", "m", 6, "Messages exchanged per session")
	flags.StringVar(&client, "client", "10.10.10.2", "Client address")
	flags.Uint64Var(&seed, "seed", 1, "Random seed")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
