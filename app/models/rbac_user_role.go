package models

import "time"

const (
	RoleAdmin       = "ADMIN"
	RoleSuperAdmin  = "SUPER_ADMIN"
	RolePosOperator = "pos_operator"
)

// AdminRoles grants administrative operations.
var AdminRoles = []string{RoleAdmin, RoleSuperAdmin}

type RbacUserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;index:ux_rbac_user_roles_user_role,unique,priority:1" json:"user_id"`
	RoleName  string    `gorm:"type:varchar(50);not null;index:ux_rbac_user_roles_user_role,unique,priority:2" json:"role_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
