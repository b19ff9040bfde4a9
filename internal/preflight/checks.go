package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"courier/internal/push"
	"courier/internal/token"
	"courier/internal/transport"
)

const gatewayTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDeliveryLog verifies the delivery log can be created or appended to.
func CheckDeliveryLog(path string) Result {
	const name = "Delivery log"
	if _, err := os.Stat(path); err == nil {
		if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
	}
	dir := CheckDirectoryAccess(name, filepath.Dir(path))
	if dir.Passed {
		dir.Detail = fmt.Sprintf("%s (will be created)", path)
	}
	return dir
}

// CheckCredentials verifies that a configuration's key or certificate can be
// read and parsed.
func CheckCredentials(cfg push.Configuration) Result {
	name := cfg.Name + " credentials"
	switch cfg.Auth {
	case push.AuthToken:
		if err := unix.Access(cfg.PrivateKeyPath, unix.R_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.PrivateKeyPath, err)}
		}
		if _, err := token.LoadPrivateKey(cfg.PrivateKeyPath); err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("signing key %s (key id %s)", cfg.PrivateKeyPath, cfg.KeyID)}
	case push.AuthCertificate:
		if _, err := cfg.Endpoint(); err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		return Result{Name: name, Passed: true, Detail: "client certificate " + cfg.CertificatePath}
	default:
		if _, err := cfg.Endpoint(); err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		return Result{Name: name, Passed: true, Detail: "none (" + cfg.Environment.String() + " environment)"}
	}
}

// CheckGateway dials the configuration's gateway and pings the connection.
func CheckGateway(ctx context.Context, cfg push.Configuration, dialer transport.Dialer) Result {
	name := cfg.Name + " gateway"
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	started := time.Now()
	conn, err := dialer.Dial(checkCtx, endpoint)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", endpoint.Address(), summarizeDialError(err))}
	}
	defer conn.Close()
	if err := conn.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: ping: %v)", endpoint.Address(), err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (HTTP/2 ok, %s)", endpoint.Address(), time.Since(started).Round(time.Millisecond))}
}

// summarizeDialError produces a human-readable summary for gateway dial failures.
func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "connect timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connect timed out"
	}
	if errors.Is(err, transport.ErrProtocol) {
		return "server does not speak HTTP/2"
	}
	return err.Error()
}
