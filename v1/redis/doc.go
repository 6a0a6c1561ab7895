// Package redis wraps go-redis for the one job schemawatch gives it: a
// cross-process mutual-exclusion lock around per-subject version allocation
// when several schemawatch replicas share one version store.
//
// Locks are plain SET NX PX keys holding a random token; release and refresh
// are compare-and-act Lua scripts, so a replica can never drop a lock it no
// longer owns after its TTL expired.
//
//	lock, err := client.WaitLock(ctx, "schemawatch:lock:auth-service-schema", 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release(context.Background())
package redis
