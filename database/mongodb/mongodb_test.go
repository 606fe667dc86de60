package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"portal-backend/config"
	"portal-backend/portal"
	"portal-backend/portal/storetest"
)

// Runs only when PORTAL_TEST_MONGO_URI points at a reachable server. Every
// subtest gets its own database, dropped afterwards.
func TestMongoStores(t *testing.T) {
	uri := os.Getenv("PORTAL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PORTAL_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	client, _, err := Connect(ctx, config.Mongo{URI: uri, Database: "portal_test"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	n := 0
	storetest.Run(t, func(t *testing.T) portal.Stores {
		n++
		db := client.Database(fmt.Sprintf("portal_test_%d_%d", time.Now().UnixNano(), n))
		require.NoError(t, EnsureIndexes(ctx, db))
		t.Cleanup(func() { _ = db.Drop(context.Background()) })
		return Stores(db)
	})
}
