package versioning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

// Key layout:
//
//	<prefix>/subjects/<escaped subject>/latest
//	<prefix>/subjects/<escaped subject>/versions/<zero padded version>
const defaultEtcdPrefix = "/schemawatch"

// EtcdStore keeps versions in etcd. Appends are compare-and-swap transactions
// on the create revision of the version key, so two writers can never both
// commit the same (subject, version).
type EtcdStore struct {
	cli      *clientv3.Client
	prefix   string
	observer observability.Observer
}

// EtcdConfig for NewEtcdClient.
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints" envconfig:"ETCD_ENDPOINTS"`
	DialTimeout time.Duration `yaml:"dial_timeout" envconfig:"ETCD_DIAL_TIMEOUT"`
	Username    string        `yaml:"username" envconfig:"ETCD_USERNAME"`
	Password    string        `yaml:"password" envconfig:"ETCD_PASSWORD"`
	Prefix      string        `yaml:"prefix" envconfig:"ETCD_PREFIX"`
}

// NewEtcdClient dials etcd.
func NewEtcdClient(cfg EtcdConfig) (*clientv3.Client, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	return cli, nil
}

// NewEtcdStore uses cli under prefix; an empty prefix means "/schemawatch".
func NewEtcdStore(cli *clientv3.Client, prefix string) *EtcdStore {
	if prefix == "" {
		prefix = defaultEtcdPrefix
	}
	return &EtcdStore{cli: cli, prefix: strings.TrimSuffix(prefix, "/")}
}

func (s *EtcdStore) WithObserver(observer observability.Observer) *EtcdStore {
	s.observer = observer
	return s
}

func (s *EtcdStore) subjectsPrefix() string {
	return path.Join(s.prefix, "subjects") + "/"
}

func (s *EtcdStore) subjectPrefix(subject string) string {
	return s.subjectsPrefix() + url.PathEscape(subject)
}

func (s *EtcdStore) latestKey(subject string) string {
	return s.subjectPrefix(subject) + "/latest"
}

func (s *EtcdStore) versionsPrefix(subject string) string {
	return s.subjectPrefix(subject) + "/versions/"
}

func (s *EtcdStore) versionKey(subject string, version int) string {
	// padding keeps lexical key order equal to numeric order
	return s.versionsPrefix(subject) + fmt.Sprintf("%010d", version)
}

func (s *EtcdStore) ListVersions(ctx context.Context, subject string) ([]SchemaVersion, error) {
	start := time.Now()
	resp, err := s.cli.Get(ctx, s.versionsPrefix(subject), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	s.observe("list_versions", subject, start, err)
	if err != nil {
		return nil, readErr("list versions", err)
	}

	versions := make([]SchemaVersion, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		v, err := decodeEtcdVersion(kv.Value, kv.CreateRevision)
		if err != nil {
			return nil, readErr("decode version", err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (s *EtcdStore) AppendVersionAtomic(ctx context.Context, candidate SchemaVersion) (SchemaVersion, error) {
	if err := validateCandidate(candidate); err != nil {
		return SchemaVersion{}, err
	}
	candidate.ID = 0

	payload, err := json.Marshal(candidate)
	if err != nil {
		return SchemaVersion{}, writeErr("encode version", err)
	}

	key := s.versionKey(candidate.Subject, candidate.Version)

	start := time.Now()
	res, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(
			clientv3.OpPut(key, string(payload)),
			clientv3.OpPut(s.latestKey(candidate.Subject), strconv.Itoa(candidate.Version)),
		).
		Commit()
	s.observe("append_version", candidate.Subject, start, err)
	if err != nil {
		return SchemaVersion{}, writeErr("append version", err)
	}
	if !res.Succeeded {
		return SchemaVersion{}, ErrVersionConflict
	}

	candidate.ID = uint(res.Header.Revision)
	return candidate, nil
}

func (s *EtcdStore) ListAll(ctx context.Context) ([]SchemaVersion, error) {
	return s.scan(ctx, "list_all", func(SchemaVersion) bool { return true })
}

func (s *EtcdStore) ListActive(ctx context.Context) ([]SchemaVersion, error) {
	return s.scan(ctx, "list_active", func(v SchemaVersion) bool { return v.IsActive })
}

// ListSubjects returns subjects ordered by the revision that created them.
func (s *EtcdStore) ListSubjects(ctx context.Context) ([]string, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var subjects []string
	for _, v := range all {
		if _, ok := seen[v.Subject]; ok {
			continue
		}
		seen[v.Subject] = struct{}{}
		subjects = append(subjects, v.Subject)
	}
	return subjects, nil
}

func (s *EtcdStore) GetVersion(ctx context.Context, subject string, version int) (SchemaVersion, error) {
	start := time.Now()
	resp, err := s.cli.Get(ctx, s.versionKey(subject, version))
	s.observe("get_version", subject, start, err)
	if err != nil {
		return SchemaVersion{}, readErr("get version", err)
	}
	if len(resp.Kvs) == 0 {
		return SchemaVersion{}, ErrNotFound
	}
	v, err := decodeEtcdVersion(resp.Kvs[0].Value, resp.Kvs[0].CreateRevision)
	if err != nil {
		return SchemaVersion{}, readErr("decode version", err)
	}
	return v, nil
}

func (s *EtcdStore) GetBySchemaID(ctx context.Context, schemaID int) (SchemaVersion, error) {
	matches, err := s.scan(ctx, "get_by_schema_id", func(v SchemaVersion) bool {
		return v.SchemaID != nil && *v.SchemaID == schemaID
	})
	if err != nil {
		return SchemaVersion{}, err
	}
	if len(matches) == 0 {
		return SchemaVersion{}, ErrNotFound
	}
	return matches[len(matches)-1], nil
}

func (s *EtcdStore) scan(ctx context.Context, op string, keep func(SchemaVersion) bool) ([]SchemaVersion, error) {
	start := time.Now()
	resp, err := s.cli.Get(ctx, s.subjectsPrefix(), clientv3.WithPrefix())
	s.observe(op, "", start, err)
	if err != nil {
		return nil, readErr(op, err)
	}

	var out []SchemaVersion
	for _, kv := range resp.Kvs {
		if !strings.Contains(string(kv.Key), "/versions/") {
			continue
		}
		v, err := decodeEtcdVersion(kv.Value, kv.CreateRevision)
		if err != nil {
			return nil, readErr("decode version", err)
		}
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func decodeEtcdVersion(raw []byte, createRevision int64) (SchemaVersion, error) {
	var v SchemaVersion
	if err := json.Unmarshal(raw, &v); err != nil {
		return SchemaVersion{}, err
	}
	v.ID = uint(createRevision)
	return v, nil
}

func (s *EtcdStore) observe(op, subject string, start time.Time, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component:   "etcd",
		Operation:   op,
		Resource:    s.prefix,
		SubResource: subject,
		Duration:    time.Since(start),
		Error:       err,
	})
}
