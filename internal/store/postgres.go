package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var networkColumns = []string{
	"n.id", "n.uuid", "n.name", "n.traffic_type", "COALESCE(n.guest_type, '')",
	"COALESCE(n.gateway, '')", "COALESCE(n.cidr, '')",
	"COALESCE(n.ip6_gateway, '')", "COALESCE(n.ip6_cidr, '')",
	"n.domain_id", "COALESCE(d.name, '')", "n.account_id", "COALESCE(a.account_name, '')",
	"n.state", "n.removed IS NOT NULL",
}

var vmColumns = []string{
	"v.id", "v.uuid", "v.instance_name", "v.state",
	"v.domain_id", "COALESCE(d.name, '')", "v.account_id", "COALESCE(a.account_name, '')",
	"v.removed IS NOT NULL",
}

var nicColumns = []string{
	"c.id", "c.uuid", "c.instance_id", "c.network_id", "COALESCE(c.mac_address, '')",
	"COALESCE(c.ip4_address, '')", "COALESCE(c.ip6_address, '')", "c.device_id",
	"c.state", "c.removed IS NOT NULL",
}

// Postgres reads platform records from the orchestration database.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to the database at dsn and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.db.Close()
}

func networkQuery() squirrel.SelectBuilder {
	return psql.Select(networkColumns...).
		From("networks n").
		LeftJoin("domain d ON d.id = n.domain_id").
		LeftJoin("account a ON a.id = n.account_id")
}

func vmQuery() squirrel.SelectBuilder {
	return psql.Select(vmColumns...).
		From("vm_instance v").
		LeftJoin("domain d ON d.id = v.domain_id").
		LeftJoin("account a ON a.id = v.account_id")
}

func nicQuery() squirrel.SelectBuilder {
	return psql.Select(nicColumns...).From("nics c")
}

// FindNetwork implements Reader.
func (p *Postgres) FindNetwork(ctx context.Context, id int64) (*Network, error) {
	n, err := queryOne(ctx, p.db, networkQuery().Where(squirrel.Eq{"n.id": id}), scanNetwork)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("network", id)
	}
	return n, err
}

// FindVM implements Reader.
func (p *Postgres) FindVM(ctx context.Context, id int64) (*VM, error) {
	vm, err := queryOne(ctx, p.db, vmQuery().Where(squirrel.Eq{"v.id": id}), scanVM)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("vm", id)
	}
	return vm, err
}

// FindNic implements Reader.
func (p *Postgres) FindNic(ctx context.Context, id int64) (*Nic, error) {
	nic, err := queryOne(ctx, p.db, nicQuery().Where(squirrel.Eq{"c.id": id}), scanNic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("nic", id)
	}
	return nic, err
}

// FindInstanceIPs implements Reader.
func (p *Postgres) FindInstanceIPs(ctx context.Context, nicID int64) ([]*InstanceIP, error) {
	nic, err := p.FindNic(ctx, nicID)
	if err != nil {
		return nil, err
	}
	return nic.InstanceIPs(), nil
}

// ListNetworks implements Reader.
func (p *Postgres) ListNetworks(ctx context.Context) ([]*Network, error) {
	return queryAll(ctx, p.db, networkQuery().Where("n.removed IS NULL").OrderBy("n.id"), scanNetwork)
}

// ListVMs implements Reader.
func (p *Postgres) ListVMs(ctx context.Context) ([]*VM, error) {
	return queryAll(ctx, p.db, vmQuery().Where("v.removed IS NULL").OrderBy("v.id"), scanVM)
}

// ListNics implements Reader.
func (p *Postgres) ListNics(ctx context.Context) ([]*Nic, error) {
	return queryAll(ctx, p.db, nicQuery().Where("c.removed IS NULL").OrderBy("c.id"), scanNic)
}

// ListNicsByVM implements Reader.
func (p *Postgres) ListNicsByVM(ctx context.Context, vmID int64) ([]*Nic, error) {
	q := nicQuery().
		Where("c.removed IS NULL").
		Where(squirrel.Eq{"c.instance_id": vmID}).
		OrderBy("c.device_id")
	return queryAll(ctx, p.db, q, scanNic)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func queryOne[T any](ctx context.Context, db querier, q squirrel.SelectBuilder, scan func(scanner) (*T, error)) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return scan(db.QueryRow(ctx, sql, args...))
}

func queryAll[T any](ctx context.Context, db querier, q squirrel.SelectBuilder, scan func(scanner) (*T, error)) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

func scanNetwork(row scanner) (*Network, error) {
	var n Network
	var traffic string
	err := row.Scan(&n.ID, &n.UUID, &n.Name, &traffic, &n.GuestType,
		&n.Gateway, &n.CIDR, &n.IP6Gateway, &n.IP6CIDR,
		&n.DomainID, &n.DomainName, &n.AccountID, &n.AccountName,
		&n.State, &n.Removed)
	if err != nil {
		return nil, err
	}
	n.TrafficType = TrafficType(traffic)
	return &n, nil
}

func scanVM(row scanner) (*VM, error) {
	var vm VM
	var state string
	err := row.Scan(&vm.ID, &vm.UUID, &vm.InstanceName, &state,
		&vm.DomainID, &vm.DomainName, &vm.AccountID, &vm.AccountName, &vm.Removed)
	if err != nil {
		return nil, err
	}
	vm.State = VMState(state)
	return &vm, nil
}

func scanNic(row scanner) (*Nic, error) {
	var n Nic
	err := row.Scan(&n.ID, &n.UUID, &n.VMID, &n.NetworkID, &n.MACAddress,
		&n.IP4Address, &n.IP6Address, &n.DeviceID, &n.State, &n.Removed)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
