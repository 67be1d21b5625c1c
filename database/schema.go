package database

const schema = `
CREATE TABLE IF NOT EXISTS boards (
	label TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	attachment_categories TEXT DEFAULT 'IMAGE',
	thread_limit INTEGER DEFAULT 100,
	bump_limit INTEGER DEFAULT 300,
	post_counter INTEGER NOT NULL DEFAULT 0,
	nsfw BOOLEAN DEFAULT 0,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS threads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	board_label TEXT NOT NULL,
	subject TEXT,
	locked BOOLEAN DEFAULT 0,
	stickied BOOLEAN DEFAULT 0,
	created_at DATETIME,
	last_bump_at DATETIME,
	original_post_id INTEGER, -- set exactly once, in the creation transaction
	FOREIGN KEY (board_label) REFERENCES boards(label) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id INTEGER NOT NULL,
	board_label TEXT NOT NULL,
	post_number INTEGER NOT NULL,
	name TEXT,
	tripcode TEXT,
	body TEXT,
	ip TEXT NOT NULL,
	created_at DATETIME,
	FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE,
	FOREIGN KEY (board_label) REFERENCES boards(label) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS attachments (
	id TEXT PRIMARY KEY,
	post_id INTEGER NOT NULL UNIQUE,
	category TEXT NOT NULL,
	folder TEXT NOT NULL,
	filename TEXT NOT NULL UNIQUE,
	original_filename TEXT NOT NULL,
	thumbnail_filename TEXT,
	remote_url TEXT,
	remote_thumbnail_url TEXT,
	width INTEGER DEFAULT 0,
	height INTEGER DEFAULT 0,
	thumb_width INTEGER DEFAULT 0,
	thumb_height INTEGER DEFAULT 0,
	duration INTEGER DEFAULT 0,
	checksum TEXT,
	FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS bans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ip TEXT NOT NULL,
	reason TEXT,
	status TEXT NOT NULL, -- WARNING | ACTIVE | EXPIRED | UNBANNED
	valid_from DATETIME NOT NULL,
	valid_to DATETIME,
	issued_by TEXT NOT NULL,
	resolved_by TEXT,
	resolution_reason TEXT
);
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME
);

-- --- INDEXES ---
CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_board_number ON posts(board_label, post_number);
CREATE INDEX IF NOT EXISTS idx_posts_thread ON posts(thread_id);
CREATE INDEX IF NOT EXISTS idx_threads_board_bump ON threads(board_label, stickied DESC, last_bump_at DESC);
-- One ACTIVE ban per IP at a time.
CREATE UNIQUE INDEX IF NOT EXISTS idx_bans_active_ip ON bans(ip) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_bans_status_valid_to ON bans(status, valid_to);
`
