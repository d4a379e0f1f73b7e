// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"github.com/ortelius/pdvd-reposcan/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = InitLogger() // setup the logger

const databaseName = "vulnmgt"

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxFields  []string
	Unique     bool
	Sparse     bool
}

// Document collections
var collectionNames = []string{"repo", "purl", "cve", "scan_result", "report", "registered_repo"}

// Edge collections: repo -> purl and cve -> purl
var edgeCollectionNames = []string{"dependency", "cve2purl"}

var idxList = []indexConfig{
	// repo collection, one document per repository URL
	{Collection: "repo", IdxName: "repo_url_unique", IdxFields: []string{"repo_url"}, Unique: true},

	// purl hub, the "known package" lookup of the correlator
	{Collection: "purl", IdxName: "purl_unique", IdxFields: []string{"purl"}, Unique: true},

	// OSV records
	{Collection: "cve", IdxName: "cve_id", IdxFields: []string{"id"}},
	{Collection: "cve", IdxName: "package_purl", IdxFields: []string{"affected[*].package.purl"}},
	{Collection: "cve", IdxName: "cve_severity_score", IdxFields: []string{"database_specific.cvss_base_score"}},

	// dependency edges are dropped and recreated per scan by _from + label
	{Collection: "dependency", IdxName: "dependency_from_label", IdxFields: []string{"_from", "label"}},
	{Collection: "dependency", IdxName: "dependency_to", IdxFields: []string{"_to"}},
	{Collection: "dependency", IdxName: "dependency_ecosystem", IdxFields: []string{"ecosystem"}},
	{Collection: "dependency", IdxName: "dependency_version_components", IdxFields: []string{"_to", "version_major", "version_minor", "version_patch"}, Sparse: true},

	{Collection: "cve2purl", IdxName: "cve2purl_from", IdxFields: []string{"_from"}},
	{Collection: "cve2purl", IdxName: "cve2purl_to", IdxFields: []string{"_to"}},

	// scan results are fetched by request id, reports by repository and age
	{Collection: "scan_result", IdxName: "scan_result_request_id", IdxFields: []string{"request_id"}, Unique: true},
	{Collection: "scan_result", IdxName: "scan_result_repo_url", IdxFields: []string{"repo_url"}},
	{Collection: "report", IdxName: "report_repo_created", IdxFields: []string{"repo_url", "created_at"}},
	{Collection: "report", IdxName: "report_request_id", IdxFields: []string{"request_id"}},
	{Collection: "registered_repo", IdxName: "registered_repo_url", IdxFields: []string{"git_url"}, Unique: true},
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase connects to the db engine, creating the database, collections and indexes.
// Connection attempts are retried with exponential backoff until ctx is done.
func InitializeDatabase(ctx context.Context, cfg config.ArangoConfig, dburl string) (DBConnection, error) {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // Set to 0 for indefinite retries

	err := backoff.RetryNotify(func() error {
		logger.Info("Attempting to connect to ArangoDB", zap.String("url", dburl))
		endpoint := connection.NewRoundRobinEndpoints([]string{dburl})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, cfg.User, cfg.Password))

		client = arangodb.NewClient(conn)

		// Ask the version of the server
		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil

	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		logger.Warn("Retrying connection to ArangoDB", zap.Error(err), zap.Duration("next", next))
	})

	if err != nil {
		return DBConnection{}, fmt.Errorf("connecting to ArangoDB: %w", err)
	}

	db, err := ensureDatabase(ctx, client)
	if err != nil {
		return DBConnection{}, err
	}

	collections := make(map[string]arangodb.Collection)
	for _, name := range collectionNames {
		col, err := ensureCollection(ctx, db, name, false)
		if err != nil {
			return DBConnection{}, err
		}
		collections[name] = col
	}
	for _, name := range edgeCollectionNames {
		col, err := ensureCollection(ctx, db, name, true)
		if err != nil {
			return DBConnection{}, err
		}
		collections[name] = col
	}

	for _, idx := range idxList {
		if err := ensureIndex(ctx, collections[idx.Collection], idx); err != nil {
			return DBConnection{}, err
		}
	}

	logger.Sugar().Infof("Database initialization complete")

	return DBConnection{
		Database:    db,
		Collections: collections,
	}, nil
}

func ensureDatabase(ctx context.Context, client arangodb.Client) (arangodb.Database, error) {
	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		db, err := client.GetDatabase(ctx, databaseName, &options)
		if err != nil {
			return nil, fmt.Errorf("failed to get database: %w", err)
		}
		return db, nil
	}

	db, err := client.CreateDatabase(ctx, databaseName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return db, nil
}

func ensureCollection(ctx context.Context, db arangodb.Database, name string, edge bool) (arangodb.Collection, error) {
	exists, _ := db.CollectionExists(ctx, name)
	if exists {
		var options arangodb.GetCollectionOptions
		col, err := db.GetCollection(ctx, name, &options)
		if err != nil {
			return nil, fmt.Errorf("failed to use collection %s: %w", name, err)
		}
		return col, nil
	}

	var props *arangodb.CreateCollectionPropertiesV2
	if edge {
		edgeType := arangodb.CollectionTypeEdge
		props = &arangodb.CreateCollectionPropertiesV2{Type: &edgeType}
	}
	col, err := db.CreateCollectionV2(ctx, name, props)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return col, nil
}

func ensureIndex(ctx context.Context, col arangodb.Collection, idx indexConfig) error {
	if indexes, err := col.Indexes(ctx); err == nil {
		for _, index := range indexes {
			if idx.IdxName == index.Name {
				return nil
			}
		}
	}

	unique := idx.Unique
	sparse := idx.Sparse
	indexOptions := arangodb.CreatePersistentIndexOptions{
		Unique: &unique,
		Sparse: &sparse,
		Name:   idx.IdxName,
	}

	if _, _, err := col.EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions); err != nil {
		return fmt.Errorf("creating index %s on %s: %w", idx.IdxName, idx.Collection, err)
	}
	logger.Sugar().Infof("Created index: %s on %s.%v", idx.IdxName, idx.Collection, idx.IdxFields)
	return nil
}
