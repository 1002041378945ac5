// Package routing is a peer-to-peer routing node for a structured overlay
// network organised by XOR distance over a flat 256-bit address space.
//
// A node keeps a bounded routing table oriented toward its closest
// neighbours, forwards messages toward addresses it does not own, and
// terminates messages whose destination falls within its own close group.
// The transport, persistence and host application are collaborators handed
// in through Config; the package owns only the routing core.
package routing

import (
	"crypto/ed25519"

	"github.com/GildasT/MaidSafe-Routing/internal/bootstrap"
	"github.com/GildasT/MaidSafe-Routing/internal/identity"
	"github.com/GildasT/MaidSafe-Routing/internal/node"
	"github.com/GildasT/MaidSafe-Routing/internal/pending"
	iroute "github.com/GildasT/MaidSafe-Routing/internal/routing"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
)

type (
	Address          = iroute.Address
	NodeInfo         = iroute.NodeInfo
	Contact          = iroute.Contact
	TableParams      = iroute.Params
	Identity         = identity.Identity
	Node             = node.Node
	Config           = node.Config
	Observer         = node.Observer
	DeliveredMessage = node.DeliveredMessage
	DestKind         = node.DestKind
	ResponseStatus   = pending.Status
	ResponseFunc     = pending.ResponseFunc
	Transport        = transport.Transport
	BootstrapInfo    = transport.BootstrapInfo
	BootstrapStore   = bootstrap.Store
)

const (
	Direct = node.Direct
	Group  = node.Group
)

// Response statuses handed to a ResponseFunc.
const (
	ResponseOK           = pending.OK
	ResponseTimeout      = pending.Timeout
	ResponseShutdown     = pending.Shutdown
	ResponseSessionEnded = pending.SessionEnded
	ResponseRejected     = pending.Rejected
)

// Network status codes reported through Observer.OnNetworkStatus.
const (
	StatusNotJoined               = node.StatusNotJoined
	StatusAnonymousSessionEnded   = node.StatusAnonymousSessionEnded
	StatusPartialJoinSessionEnded = node.StatusPartialJoinSessionEnded
	StatusShuttingDown            = node.StatusShuttingDown
)

var (
	ErrInvalidDestination  = node.ErrInvalidDestination
	ErrDataTooLarge        = node.ErrDataTooLarge
	ErrNotJoined           = node.ErrNotJoined
	ErrNetworkShuttingDown = node.ErrNetworkShuttingDown
)

// NewIdentity generates the long-lived keys a node is addressed by.
func NewIdentity() (*Identity, error) { return identity.New() }

// AddressOf derives the overlay address for a public key.
func AddressOf(pub ed25519.PublicKey) Address { return iroute.AddressOf(pub) }

// DefaultConfig returns the standard table and timing parameters.
func DefaultConfig() Config { return node.DefaultConfig() }

// DefaultTableParams returns the standard routing-table bounds.
func DefaultTableParams() TableParams { return iroute.DefaultParams() }

// NewNode builds a node from cfg. It does not touch the network until Join
// is called.
func NewNode(cfg Config) (*Node, error) { return node.New(cfg) }

// OpenBootstrapStore opens (or creates) the persisted bootstrap peer list
// at path.
func OpenBootstrapStore(path string) (*BootstrapStore, error) { return bootstrap.Open(path) }

// DefaultBootstrapPath is where the bootstrap list lives unless configured
// otherwise.
func DefaultBootstrapPath() string { return bootstrap.DefaultPath() }
