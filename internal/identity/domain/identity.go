// Package domain holds the storage-neutral entity types for the identity
// store: users, roles, permissions, the city/zone/ward hierarchy, and
// employees.
package domain

import "time"

// PrimaryRole enumerates the coarse role a user self-reports at creation;
// fine-grained authorization still flows through Role/Permission grants.
type PrimaryRole string

const (
	RoleAdmin      PrimaryRole = "admin"
	RoleSupervisor PrimaryRole = "supervisor"
	RoleUser       PrimaryRole = "user"
	RoleOperator   PrimaryRole = "operator"
	RoleManager    PrimaryRole = "manager"
	RoleCustom     PrimaryRole = "custom"
)

// User is an authenticated principal.
type User struct {
	ID           string      `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	EmpCode      *string     `json:"emp_code,omitempty" db:"emp_code"`
	Email        *string     `json:"email,omitempty" db:"email"`
	Phone        *string     `json:"phone,omitempty" db:"phone"`
	PrimaryRole  PrimaryRole `json:"primary_role" db:"primary_role"`
	Department   *string     `json:"department,omitempty" db:"department"`
	PasswordHash string      `json:"-" db:"password_hash"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user's primary role bypasses scope checks.
func (u *User) IsAdmin() bool {
	return u != nil && u.PrimaryRole == RoleAdmin
}

// Role is a named bundle of permissions.
type Role struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsSystem    bool      `json:"is_system" db:"is_system"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Permission identifies a single (module, action) capability.
type Permission struct {
	ID          string  `json:"id" db:"id"`
	Module      string  `json:"module" db:"module"`
	Action      string  `json:"action" db:"action"`
	Label       *string `json:"label,omitempty" db:"label"`
	Description *string `json:"description,omitempty" db:"description"`
}

// Key returns the resolver-facing "module:action" string.
func (p *Permission) Key() string {
	return p.Module + ":" + p.Action
}

// RolePermission is the role→permission edge.
type RolePermission struct {
	RoleID       string `db:"role_id"`
	PermissionID string `db:"permission_id"`
}

// UserRole is the user→role edge, audited.
type UserRole struct {
	UserID     string    `db:"user_id"`
	RoleID     string    `db:"role_id"`
	AssignedAt time.Time `db:"assigned_at"`
	AssignedBy *string   `db:"assigned_by"`
}

// UserPermission is a direct user→permission grant, optionally qualified by
// city. A nil CityID means the grant applies to all cities.
type UserPermission struct {
	ID           string  `db:"id"`
	UserID       string  `db:"user_id"`
	PermissionID string  `db:"permission_id"`
	CityID       *int64  `db:"city_id"`
}

// UserCityAccess grants a user view scope over a city.
type UserCityAccess struct {
	UserID string `db:"user_id"`
	CityID int64  `db:"city_id"`
}

// UserZoneAccess grants a user view scope over a zone.
type UserZoneAccess struct {
	UserID string `db:"user_id"`
	ZoneID int64  `db:"zone_id"`
}

// City is the top of the location hierarchy.
type City struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Zone belongs to a city.
type Zone struct {
	ID     int64  `json:"id" db:"id"`
	CityID int64  `json:"city_id" db:"city_id"`
	Name   string `json:"name" db:"name"`
}

// Ward belongs to a zone.
type Ward struct {
	ID     int64  `json:"id" db:"id"`
	ZoneID int64  `json:"zone_id" db:"zone_id"`
	Name   string `json:"name" db:"name"`
}

// Designation is an employee's job title, used for filtering/reporting.
type Designation struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Employee is a field worker tracked for attendance.
type Employee struct {
	EmpID            int64    `json:"emp_id" db:"emp_id"`
	EmpCode          string   `json:"emp_code" db:"emp_code"`
	Name             string   `json:"name" db:"name"`
	Phone            *string  `json:"phone,omitempty" db:"phone"`
	WardID           int64    `json:"ward_id" db:"ward_id"`
	DesignationID    *int64   `json:"designation_id,omitempty" db:"designation_id"`
	FaceEmbeddingRef *string  `json:"face_embedding_ref,omitempty" db:"face_embedding_ref"`
	FaceID           *string  `json:"face_id,omitempty" db:"face_id"`
	FaceConfidence   *float64 `json:"face_confidence,omitempty" db:"face_confidence"`
}

// IsEnrolled reports whether the employee has a registered face reference.
func (e *Employee) IsEnrolled() bool {
	return e != nil && e.FaceEmbeddingRef != nil && *e.FaceEmbeddingRef != ""
}

// SupervisorWard assigns a supervisor oversight of a ward.
type SupervisorWard struct {
	AssignedID   string `db:"assigned_id"`
	SupervisorID string `db:"supervisor_id"`
	WardID       int64  `db:"ward_id"`
}
