package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/djtremolo/thermit/internal/adapt"
	"github.com/djtremolo/thermit/internal/adapt/fileio"
	"github.com/djtremolo/thermit/internal/adapt/redisqueue"
	"github.com/djtremolo/thermit/internal/adapt/serialdev"
	"github.com/djtremolo/thermit/internal/adapt/sysclock"
	"github.com/djtremolo/thermit/internal/crc"
	"github.com/djtremolo/thermit/internal/packet"
	"github.com/djtremolo/thermit/internal/session"
	"github.com/djtremolo/thermit/pkg/redisclient"
)

// Configuration flags
var (
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	role         = flag.String("role", "master", "Link role: master or slave")
	linkName     = flag.String("link-name", "thermit0", "Name used in logs and Redis diagnostics keys")

	outboundDir = flag.String("outbound-dir", "/var/lib/thermit/outbound", "Directory scanned for files to send when Redis is not configured")
	inboundDir  = flag.String("inbound-dir", "/var/lib/thermit/inbound", "Directory incoming files are written into")

	chunkSize   = flag.Int("chunk-size", 112, "Proposed chunk size in bytes")
	maxFileSize = flag.Int("max-file-size", 65535, "Proposed maximum file size in bytes")
	keepAliveMs = flag.Int("keepalive-ms", 1000, "Proposed keepalive interval in milliseconds")
	burstLength = flag.Int("burst-length", 4, "Proposed burst length in chunks")

	redisAddr = flag.String("redis-addr", "", "Redis server address; outbound files are pulled from the thermit:outbox queue when set")
	redisPass = flag.String("redis-pass", "", "Redis password")
	redisDB   = flag.Int("redis-db", 0, "Redis database number")

	stepInterval = flag.Duration("step-interval", 10*time.Millisecond, "Delay between protocol steps")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting thermit link %q", *linkName)
	log.Printf("Serial device: %s @ %d baud", *serialDevice, *baudRate)
	log.Printf("Role: %s", *role)

	r, err := parseRole(*role)
	if err != nil {
		log.Fatalf("%v", err)
	}

	dev, err := serialdev.Open(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("failed to open serial device: %v", err)
	}
	defer dev.Close()
	log.Printf("Serial device opened")

	files := transferFS{outbound: fileio.New(*outboundDir), inbound: fileio.New(*inboundDir)}

	var outbound adapt.OutboundSource
	var reporter session.Reporter

	if *redisAddr != "" {
		rc, err := redisclient.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer rc.Close()
		log.Printf("Connected to Redis at %s", *redisAddr)

		outbound = redisqueue.NewSender(rc, redisqueue.DefaultOutboxKey, outboundFileSizer(*outboundDir))
		reporter = redisqueue.NewReporter(rc, *linkName)
	} else {
		log.Printf("No Redis address configured; scanning %s for outbound files", *outboundDir)
		outbound = fileio.NewDirQueue(*outboundDir)
	}

	ifc := adapt.Interface{
		Device:   dev,
		Files:    files,
		Outbound: outbound,
		Clock:    sysclock.New(),
		CRC16:    crc.Compute,
		Logger:   log.Default(),
	}

	localParams := packet.Parameters{
		Version:     1,
		ChunkSize:   uint16(*chunkSize),
		MaxFileSize: uint16(*maxFileSize),
		KeepAliveMs: uint16(*keepAliveMs),
		BurstLength: uint16(*burstLength),
	}

	sess, err := session.New(*linkName, r, ifc, localParams, reporter)
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*stepInterval)
	defer ticker.Stop()

	log.Printf("Entering protocol loop")
	for {
		select {
		case <-sigCh:
			log.Printf("Shutting down...")
			return
		case <-ticker.C:
			sess.Step()
		}
	}
}

func parseRole(s string) (session.Role, error) {
	switch s {
	case "master":
		return session.RoleMaster, nil
	case "slave":
		return session.RoleSlave, nil
	default:
		return 0, &invalidRoleError{s}
	}
}

type invalidRoleError struct{ got string }

func (e *invalidRoleError) Error() string {
	return "invalid -role " + e.got + ": must be \"master\" or \"slave\""
}

// transferFS opens files to send under the outbound directory and writes
// incoming files under the inbound directory.
type transferFS struct {
	outbound *fileio.FS
	inbound  *fileio.FS
}

func (f transferFS) OpenRead(name string) (adapt.FileHandle, uint16, error) {
	return f.outbound.OpenRead(name)
}

func (f transferFS) OpenWrite(name string, size uint16) (adapt.FileHandle, error) {
	return f.inbound.OpenWrite(name, size)
}

// outboundFileSizer lets redisqueue.Sender report a size for a file name
// popped off the Redis queue, by stat-ing it under outboundDir.
func outboundFileSizer(dir string) func(name string) (uint16, bool) {
	fs := fileio.New(dir)
	return func(name string) (uint16, bool) {
		h, size, err := fs.OpenRead(name)
		if err != nil {
			return 0, false
		}
		_ = h.Close()
		return size, true
	}
}
