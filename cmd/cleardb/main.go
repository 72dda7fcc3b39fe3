package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"storefront-builder/bootstrap"

	"github.com/joho/godotenv"
)

// managedTables 本服务 AutoMigrate 创建的表，按清理顺序排列
var managedTables = []string{"pages", "operators"}

func main() {
	force := flag.Bool("force", false, "跳过确认提示")
	truncate := flag.Bool("truncate", false, "使用 TRUNCATE 代替 DELETE")
	only := flag.String("tables", "", "只清理指定的表，逗号分隔（pages,operators）")
	driver := flag.String("driver", "", "postgres|mysql，默认读取 DB_DRIVER")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[ClearDB] ⚠️ 未找到 .env，使用系统环境变量")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("[ClearDB] ❌ DATABASE_URL 未设置")
	}
	*driver = firstNonEmpty(*driver, os.Getenv("DB_DRIVER"), "postgres")

	tables, err := resolveTables(*only)
	if err != nil {
		log.Fatalf("[ClearDB] ❌ %v", err)
	}
	if !*force && !confirm(os.Stdin, os.Stdout, tables) {
		fmt.Println("已取消")
		return
	}

	db := bootstrap.NewDatabase(*driver, dsn)
	failed := 0
	for _, table := range tables {
		if err := db.Exec(clearStatement(*driver, table, *truncate)).Error; err != nil {
			log.Printf("[ClearDB] ❌ %s: %v", table, err)
			failed++
			continue
		}
		log.Printf("[ClearDB] ✅ %s 已清空", table)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// resolveTables 解析 -tables 参数，只接受本服务的表
func resolveTables(arg string) ([]string, error) {
	if strings.TrimSpace(arg) == "" {
		return append([]string(nil), managedTables...), nil
	}
	var out []string
	for _, name := range strings.Split(arg, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !isManaged(name) {
			return nil, fmt.Errorf("未知的表 %q，可选: %s", name, strings.Join(managedTables, ","))
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, errors.New("-tables 没有有效的表名")
	}
	return out, nil
}

func isManaged(name string) bool {
	for _, t := range managedTables {
		if t == name {
			return true
		}
	}
	return false
}

// clearStatement 生成清表语句，mysql 的 TRUNCATE 不支持 RESTART IDENTITY / CASCADE
func clearStatement(driver, table string, truncate bool) string {
	switch {
	case !truncate:
		return "DELETE FROM " + table
	case driver == "mysql":
		return "TRUNCATE TABLE " + table
	default:
		return "TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE"
	}
}

// confirm 列出受影响的表并等待输入 yes
func confirm(in io.Reader, out io.Writer, tables []string) bool {
	fmt.Fprintf(out, "⚠️  将删除以下表中的全部数据: %s\n确认？(yes/no): ", strings.Join(tables, ", "))
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "yes", "y":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
