// Package postgres provides the GORM connection used by the schema-version and
// message-metadata stores.
//
// The connection is held in an atomic pointer: a background monitor pings the
// database every ten seconds and, on failure, a reconnect loop swaps in a fresh
// *gorm.DB without callers having to re-resolve anything. GORM runs with
// TranslateError enabled; TranslateError further maps driver errors (pgconn
// SQLSTATE codes) onto this package's sentinels so stores can classify failures
// with errors.Is:
//
//	if err := pg.DB().WithContext(ctx).Create(&row).Error; err != nil {
//	    if errors.Is(postgres.TranslateError(err), postgres.ErrDuplicateKey) {
//	        // lost a race on a unique index
//	    }
//	}
package postgres
