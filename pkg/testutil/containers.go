// Copyright 2025 SGNL.ai, Inc.

// Package testutil starts throwaway directory servers in local containers
// for integration tests.
package testutil

import (
	"context"
	"fmt"
	"log"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// LDAPPort is the plain LDAP port inside the container.
	LDAPPort = "389"

	// Bootstrap values baked into the container.
	AdminDN       = "cn=admin,dc=example,dc=org"
	AdminPassword = "admin"
	BaseDN        = "dc=example,dc=org"
)

func setupLDAPContainer(ctx context.Context) (testcontainers.Container, error) {
	request := testcontainers.ContainerRequest{
		Image:        "osixia/openldap:1.5.0",
		ExposedPorts: []string{LDAPPort + "/tcp"},
		AutoRemove:   true,
		Env: map[string]string{
			"LDAP_ORGANISATION":   "Example Org",
			"LDAP_DOMAIN":         "example.org",
			"LDAP_ADMIN_PASSWORD": AdminPassword,
		},
		WaitingFor: wait.ForListeningPort(LDAPPort + "/tcp"),
	}

	return testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: request,
			Logger:           log.Default(),
			Started:          true,
		},
	)
}

// StartLDAPServer runs an OpenLDAP instance in a local container and returns
// its URL. The container is terminated when the test finishes. May fail the
// test internally if setup fails.
func StartLDAPServer(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := setupLDAPContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to setup LDAP container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate LDAP container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get LDAP container host: %v", err)
	}

	port, err := container.MappedPort(ctx, nat.Port(LDAPPort+"/tcp"))
	if err != nil {
		t.Fatalf("Failed to get mapped port of LDAP container: %v", err)
	}

	return fmt.Sprintf("ldap://%s:%s", host, port.Port())
}
