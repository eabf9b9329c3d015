package db

import (
	"database/sql"
	"log"

	_ "modernc.org/sqlite"
)

// InitDB 初始化并返回数据库连接
// 只存下载口令这类轻量旁路数据，制品索引就是存储前缀结构本身，不进库
func InitDB(dbPath string) *sql.DB {
	log.Printf(">>> DB PATH: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		log.Fatalf("Failed to open db: %v", err)
	}

	initTables(db)

	return db
}

func initTables(db *sql.DB) {
	sqls := []string{
		// 下载口令表 (短时效 capability token)
		`CREATE TABLE IF NOT EXISTS download_codes (
			code TEXT PRIMARY KEY,
			email TEXT,
			expires_at INTEGER,
			created_at INTEGER
		);`,
	}

	for _, sqlStmt := range sqls {
		if _, err := db.Exec(sqlStmt); err != nil {
			log.Fatalf("Failed to init table: %v\nSQL: %s", err, sqlStmt)
		}
	}
}
