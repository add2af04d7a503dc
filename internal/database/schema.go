package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    telegram_id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    paid_until TIMESTAMP NULL DEFAULT NULL,
    total_received DECIMAL(18,6) NOT NULL DEFAULT 0,
    last_plan VARCHAR(32),
    wallet_addr VARCHAR(64),
    inviter_id BIGINT,
    invite_count INT NOT NULL DEFAULT 0,
    invite_reward_days INT NOT NULL DEFAULT 0,
    language VARCHAR(8) NOT NULL DEFAULT 'en',
    expired_handled_at TIMESTAMP NULL DEFAULT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,

	`CREATE TABLE IF NOT EXISTS address_pool (
    addr VARCHAR(64) PRIMARY KEY,
    assigned_to BIGINT,
    assigned_at TIMESTAMP NULL DEFAULT NULL
)`,

	`CREATE TABLE IF NOT EXISTS orders (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    ref CHAR(36) NOT NULL UNIQUE,
    telegram_id BIGINT NOT NULL,
    addr VARCHAR(64) NOT NULL,
    amount DECIMAL(18,6) NOT NULL,
    plan_code VARCHAR(32) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    tx_id VARCHAR(128),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_orders_addr_status (addr, status),
    KEY idx_orders_status_created (status, created_at)
)`,

	`CREATE TABLE IF NOT EXISTS usdt_txs (
    tx_id VARCHAR(128) PRIMARY KEY,
    addr VARCHAR(64) NOT NULL,
    from_addr VARCHAR(64) NOT NULL,
    amount DECIMAL(18,6) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'seen',
    plan_code VARCHAR(32),
    credited_amount DECIMAL(18,6),
    telegram_id BIGINT,
    block_time TIMESTAMP NULL DEFAULT NULL,
    processed_at TIMESTAMP NULL DEFAULT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_txs_addr_created (addr, created_at),
    KEY idx_txs_status_created (status, created_at),
    KEY idx_txs_tgid_created (telegram_id, created_at)
)`,

	`CREATE TABLE IF NOT EXISTS admin_audit (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    action VARCHAR(64) NOT NULL,
    telegram_id BIGINT,
    detail TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,

	`CREATE TABLE IF NOT EXISTS user_reminders (
    telegram_id BIGINT NOT NULL,
    lead_days INT NOT NULL,
    sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (telegram_id, lead_days)
)`,
}
