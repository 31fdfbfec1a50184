package main

import (
	"fmt"
	"os"

	"agentmail/backend/internal/crypto"
)

// 为代理客户端生成一对加密密钥。
// 私钥只打印一次，服务端从不保存。
func main() {
	pub, sec, err := crypto.GenerateKeypair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 生成密钥失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("public key:  %s\n", pub)
	fmt.Printf("secret key:  %s\n", sec)
	fmt.Println()
	fmt.Println("用 public key 调用 PUT /v1/agent/key 登记加密；secret key 留在客户端本地解密推送载荷。")
}
