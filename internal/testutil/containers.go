package testutil

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer runs req with containerPort bound to a free host port and
// returns the reachable host and port. Docker socket hiccups are retried.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, containerPort string) (string, string) {
	t.Helper()
	return startContainerOn(t, req, containerPort, freePort(t))
}

func freePort(t *testing.T) int {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	port, err := getFreePort()
	if err != nil {
		t.Fatalf("could not get free port: %v", err)
	}
	return port
}

// startContainerOn is startContainer with a caller-chosen host port, for
// services that must advertise their external address.
func startContainerOn(t *testing.T, req testcontainers.ContainerRequest, containerPort string, port int) (string, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	var err error

	proto := nat.Port(containerPort + "/tcp")
	req.ExposedPorts = []string{string(proto)}
	req.HostConfigModifier = func(cfg *container.HostConfig) {
		cfg.PortBindings = nat.PortMap{
			proto: []nat.PortBinding{{HostPort: strconv.Itoa(port)}},
		}
	}

	var c testcontainers.Container
	for attempt := 0; attempt < 3; attempt++ {
		c, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err == nil || !strings.Contains(err.Error(), "docker.sock") {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	if err != nil {
		t.Fatalf("failed to start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, proto)
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return host, mapped.Port()
}

// StartRedis runs redis:7-alpine and returns host and port.
func StartRedis(t *testing.T) (string, int) {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image: "redis:7-alpine",
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second),
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	}, "6379")

	waitForTCP(t, host, port)
	p, _ := strconv.Atoi(port)
	return host, p
}

// StartEtcd runs a single-node etcd and returns its client endpoint.
func StartEtcd(t *testing.T) string {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image: "gcr.io/etcd-development/etcd:v3.5.15",
		Cmd: []string{
			"/usr/local/bin/etcd",
			"--name", "schemawatch-test",
			"--listen-client-urls", "http://0.0.0.0:2379",
			"--advertise-client-urls", "http://0.0.0.0:2379",
		},
		WaitingFor: wait.ForListeningPort("2379/tcp").WithStartupTimeout(30 * time.Second),
	}, "2379")

	waitForTCP(t, host, port)
	return net.JoinHostPort(host, port)
}

// StartKafka runs a single Redpanda broker speaking the Kafka protocol and
// returns its bootstrap address. Topics are created on first use.
func StartKafka(t *testing.T) string {
	t.Helper()

	port := freePort(t)
	host, mapped := startContainerOn(t, testcontainers.ContainerRequest{
		Image: "docker.redpanda.com/redpandadata/redpanda:v24.1.1",
		Cmd: []string{
			"redpanda", "start",
			"--mode", "dev-container",
			"--smp", "1",
			"--kafka-addr", "PLAINTEXT://0.0.0.0:9092",
			"--advertise-kafka-addr", "PLAINTEXT://localhost:" + strconv.Itoa(port),
		},
		WaitingFor: wait.ForLog("Successfully started Redpanda!").WithStartupTimeout(60 * time.Second),
	}, "9092", port)

	waitForTCP(t, host, mapped)
	return net.JoinHostPort("localhost", mapped)
}

// StartRabbit runs rabbitmq:3-management-alpine and returns host and AMQP port.
func StartRabbit(t *testing.T) (string, uint) {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image: "rabbitmq:3-management-alpine",
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete").WithStartupTimeout(60 * time.Second),
	}, "5672")

	waitForTCP(t, host, port)
	p, _ := strconv.Atoi(port)
	return host, uint(p)
}

// StartMinio runs a single MinIO server with minioadmin credentials and
// returns its endpoint.
func StartMinio(t *testing.T) string {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image: "minio/minio:RELEASE.2024-05-10T01-41-38Z",
		Cmd:   []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}, "9000")

	waitForTCP(t, host, port)
	return net.JoinHostPort(host, port)
}

func waitForTCP(t *testing.T, host, port string) {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 2*time.Second)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("%s:%s not reachable", host, port)
}
