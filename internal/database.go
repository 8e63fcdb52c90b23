package internal

import (
	"fmt"

	"github.com/eyepatch-3097/labelz-deploy/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB(cfg *config.Config) error {
	dsn := cfg.Database.DSN()

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate the schema
	if err := autoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	fmt.Println("Database connected and migrated successfully")
	return nil
}

func autoMigrate() error {
	fmt.Println("Creating workspaces table if not exists...")
	result := DB.Exec(`
        CREATE TABLE IF NOT EXISTS workspaces (
            id varchar(191) PRIMARY KEY,
            org_id varchar(191),
            org_name text,
            name text NOT NULL,
            description text,
            workspace_code varchar(64) UNIQUE,
            created_by varchar(191),
            created_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create workspaces table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_workspaces_org_id ON workspaces(org_id)")

	fmt.Println("Creating workspace_fields table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS workspace_fields (
            id varchar(191) PRIMARY KEY,
            workspace_id varchar(191) NOT NULL,
            name text NOT NULL,
            key text NOT NULL,
            field_type varchar(20),
            source_header text,
            x int DEFAULT 10,
            y int DEFAULT 10,
            width int DEFAULT 160,
            height int DEFAULT 32,
            "order" int DEFAULT 0,
            created_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create workspace_fields table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_workspace_fields_workspace_id ON workspace_fields(workspace_id)")

	fmt.Println("Creating label_templates table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS label_templates (
            id varchar(191) PRIMARY KEY,
            workspace_id varchar(191) NOT NULL,
            name text NOT NULL,
            description text,
            width_cm numeric(5,2) NOT NULL,
            height_cm numeric(5,2) NOT NULL,
            dpi int DEFAULT 300,
            canvas_bg_color varchar(20) DEFAULT '#ffffff',
            layout_json jsonb,
            print_defaults jsonb,
            qr_payload_mode varchar(10) DEFAULT 'simple',
            category varchar(30) DEFAULT 'OTHERS',
            custom_category text,
            is_base boolean DEFAULT false,
            template_code varchar(30) UNIQUE,
            created_by varchar(191),
            created_at timestamp(3) NULL,
            updated_at timestamp(3) NULL,
            deleted_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create label_templates table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_templates_workspace_id ON label_templates(workspace_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_templates_deleted_at ON label_templates(deleted_at)")

	// Columns added after the first release
	ensureLabelTemplateColumns := map[string]string{
		"canvas_bg_color": "ALTER TABLE label_templates ADD COLUMN canvas_bg_color varchar(20) DEFAULT '#ffffff'",
		"print_defaults":  "ALTER TABLE label_templates ADD COLUMN print_defaults jsonb",
		"qr_payload_mode": "ALTER TABLE label_templates ADD COLUMN qr_payload_mode varchar(10) DEFAULT 'simple'",
		"custom_category": "ALTER TABLE label_templates ADD COLUMN custom_category text",
	}
	for column, stmt := range ensureLabelTemplateColumns {
		if err := ensureColumn("label_templates", column, stmt); err != nil {
			return err
		}
	}

	fmt.Println("Creating label_template_fields table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS label_template_fields (
            id varchar(191) PRIMARY KEY,
            template_id varchar(191) NOT NULL,
            field_id varchar(36),
            name text NOT NULL,
            key text NOT NULL,
            field_type varchar(20) DEFAULT 'TEXT',
            x int DEFAULT 0,
            y int DEFAULT 0,
            width int DEFAULT 100,
            height int DEFAULT 24,
            z_index int DEFAULT 0,
            font_family text DEFAULT 'Inter',
            font_size int DEFAULT 14,
            font_bold boolean DEFAULT false,
            font_italic boolean DEFAULT false,
            font_underline boolean DEFAULT false,
            text_align varchar(10) DEFAULT 'left',
            text_color varchar(20) DEFAULT '#000000',
            bg_color varchar(20) DEFAULT 'transparent',
            show_label boolean DEFAULT true,
            static_text text,
            shape_type varchar(20),
            shape_color varchar(20) DEFAULT '#000000',
            workspace_field_id varchar(191),
            "order" int DEFAULT 0,
            created_at timestamp(3) NULL,
            updated_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create label_template_fields table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_template_fields_template_id ON label_template_fields(template_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_template_fields_field_id ON label_template_fields(field_id)")
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_label_template_fields_key ON label_template_fields(template_id, key)")

	fmt.Println("Creating global_templates tables if not exist...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS global_templates (
            id varchar(191) PRIMARY KEY,
            name text NOT NULL,
            description text,
            width_cm numeric(5,2) DEFAULT 5,
            height_cm numeric(5,2) DEFAULT 5,
            dpi int DEFAULT 300,
            layout_json jsonb,
            category varchar(30) DEFAULT 'OTHERS',
            custom_category text,
            created_by varchar(191),
            is_active boolean DEFAULT true,
            created_at timestamp(3) NULL,
            updated_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create global_templates table: %w", result.Error)
	}
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS global_template_fields (
            id varchar(191) PRIMARY KEY,
            template_id varchar(191) NOT NULL,
            name text NOT NULL,
            key text NOT NULL,
            field_type varchar(20),
            x int DEFAULT 0,
            y int DEFAULT 0,
            width int DEFAULT 140,
            height int DEFAULT 32,
            "order" int DEFAULT 0
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create global_template_fields table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_global_template_fields_template_id ON global_template_fields(template_id)")

	fmt.Println("Creating label_batches table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS label_batches (
            id varchar(191) PRIMARY KEY,
            workspace_id varchar(191) NOT NULL,
            template_id varchar(191) NOT NULL,
            created_by varchar(191),
            mode varchar(16) DEFAULT 'SINGLE',
            ean_code varchar(64),
            gs1_code varchar(64),
            quantity int DEFAULT 1,
            field_values jsonb,
            created_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create label_batches table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_batches_workspace_id ON label_batches(workspace_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_batches_template_id ON label_batches(template_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_batches_created_at ON label_batches(created_at)")

	fmt.Println("Creating label_batch_items table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS label_batch_items (
            id varchar(191) PRIMARY KEY,
            batch_id varchar(191) NOT NULL,
            row_index int DEFAULT 1,
            ean_code varchar(64) NOT NULL,
            gs1_code varchar(64),
            quantity int DEFAULT 1,
            field_values jsonb,
            created_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create label_batch_items table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_label_batch_items_batch_id ON label_batch_items(batch_id)")

	fmt.Println("Creating layout_drafts table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS layout_drafts (
            id varchar(191) PRIMARY KEY,
            template_id varchar(191) NOT NULL,
            session_id varchar(191) NOT NULL,
            layout_json jsonb,
            state varchar(30) DEFAULT 'laying_out_canvas',
            created_at timestamp(3) NULL,
            updated_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create layout_drafts table: %w", result.Error)
	}
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_layout_drafts_template_session ON layout_drafts(template_id, session_id)")

	fmt.Println("Creating usage_records table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS usage_records (
            id varchar(36) PRIMARY KEY,
            workspace_id varchar(191) NOT NULL,
            event_type varchar(50) NOT NULL,
            date date NOT NULL,
            count bigint NOT NULL DEFAULT 0,
            created_at timestamp(3) NULL,
            updated_at timestamp(3) NULL,
            deleted_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create usage_records table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_usage_records_workspace_id ON usage_records(workspace_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_usage_records_event_type ON usage_records(event_type)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_usage_records_date ON usage_records(date)")
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_records_unique ON usage_records(workspace_id, event_type, date) WHERE deleted_at IS NULL")

	fmt.Println("Creating activity_logs table if not exists...")
	result = DB.Exec(`
        CREATE TABLE IF NOT EXISTS activity_logs (
            id varchar(191) PRIMARY KEY,
            method varchar(10) NOT NULL,
            path varchar(255) NOT NULL,
            user_agent text,
            ip_address varchar(45),
            request_body text,
            query_params text,
            status_code int NOT NULL,
            response_time bigint NOT NULL,
            user_id varchar(36),
            user_email varchar(255),
            created_at timestamp(3) NULL,
            updated_at timestamp(3) NULL,
            deleted_at timestamp(3) NULL
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create activity_logs table: %w", result.Error)
	}
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_activity_logs_method ON activity_logs(method)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_activity_logs_path ON activity_logs(path)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)")

	fmt.Println("Tables created/verified successfully")
	return nil
}

func ensureColumn(table, column, statement string) error {
	if DB.Migrator().HasColumn(table, column) {
		return nil
	}

	fmt.Printf("Adding missing column %s.%s...\n", table, column)
	if err := DB.Exec(statement).Error; err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}

	return nil
}

func CloseDB() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
